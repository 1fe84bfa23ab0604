// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cookies

import (
	"encoding/json"
	"errors"
	"fmt"
)

// AuthPayload is the body returned by the backend for an authentication event.
type AuthPayload struct {
	User *User `json:"user"`
	// AccessToken is only returned by the impersonation operations.
	AccessToken string `json:"accessToken,omitempty"`
}

// User is the backend's user payload. IsSuperAdmin is kept loosely typed because the backend is
// not consistent about sending a bool or a string.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	WorkspaceID  string `json:"workspaceId"`
	Role         string `json:"role"`
	IsSuperAdmin any    `json:"isSuperAdmin"`
}

// PublicUser is the user as returned to the browser. It never carries credentials.
type PublicUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	WorkspaceID  string `json:"workspaceId"`
	Role         Role   `json:"role"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
}

// PublicBody is the JSON body written by the relay after an authentication event.
type PublicBody struct {
	User PublicUser `json:"user"`
}

func DecodeAuthPayload(body []byte) (*AuthPayload, error) {
	var payload AuthPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode user payload: %w", err)
	}
	if payload.User == nil {
		return nil, errors.New("decode user payload: user is missing")
	}
	return &payload, nil
}

// Public returns the user with its role and super admin flag normalized.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		WorkspaceID:  u.WorkspaceID,
		Role:         NormalizeRole(u.Role),
		IsSuperAdmin: ParseSuperAdmin(u.IsSuperAdmin),
	}
}
