// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package negotiation

import "github.com/danielhkuo/commission-negotiation/models"

// permissions says which party may drive each edge. The seller answers the
// platform's offers and may withdraw an open counter; the platform answers
// counters and may withdraw its own offer.
var permissions = map[models.Role]map[models.Status][]Op{
	models.RoleSeller: {
		models.StatusPending:        {OpAccept, OpCounter, OpReject},
		models.StatusCounterOffered: {OpReject},
	},
	models.RolePlatform: {
		models.StatusPending:        {OpReject},
		models.StatusCounterOffered: {OpAccept, OpCounter, OpReject},
	},
}

// Permitted reports whether role may apply op while the case is in status.
// Terminal states permit nothing.
func Permitted(role models.Role, status models.Status, op Op) bool {
	for _, allowed := range permissions[role][status] {
		if allowed == op {
			return true
		}
	}
	return false
}

// AllowedActions lists the operations role can currently perform, dropping
// a seller counter once the round limit is reached.
func AllowedActions(c *models.NegotiationCase, role models.Role) []string {
	out := []string{}
	for _, op := range permissions[role][c.Status] {
		if op == OpCounter && c.Status == models.StatusPending && c.Round >= c.MaxRounds {
			continue
		}
		out = append(out, string(op))
	}
	return out
}
