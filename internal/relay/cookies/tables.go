// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cookies

import (
	"strings"
)

// Role is the normalized role of a user. It is advisory and only drives UI routing.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"

	// LowestPrivilegeRole is used for any role the backend declares which is not in roleTable.
	LowestPrivilegeRole = RoleAgent
)

// roleTable lists every backend role spelling the relay understands, after lowercasing and trimming.
//
//nolint:gochecknoglobals // please treat this as a readonly const, do not mutate
var roleTable = map[string]Role{
	"admin":         RoleAdmin,
	"administrator": RoleAdmin,
	"owner":         RoleAdmin,
	"manager":       RoleManager,
	"supervisor":    RoleManager,
	"agent":         RoleAgent,
	"member":        RoleAgent,
	"user":          RoleAgent,
}

// superAdminTable maps string spellings of the backend's super admin flag, after lowercasing and
// trimming. Anything absent is false.
//
//nolint:gochecknoglobals // please treat this as a readonly const, do not mutate
var superAdminTable = map[string]bool{
	"true": true,
}

// NormalizeRole maps a backend role to a known Role. Unknown and missing roles yield LowestPrivilegeRole.
func NormalizeRole(raw string) Role {
	if role, ok := roleTable[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return role
	}
	return LowestPrivilegeRole
}

// ParseSuperAdmin interprets a decoded JSON value. A JSON true, or a string which is "true" after
// lowercasing and trimming, yields true. Everything else, including numbers and null, yields false.
func ParseSuperAdmin(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return superAdminTable[strings.ToLower(strings.TrimSpace(v))]
	default:
		return false
	}
}
