package auth

import (
	"fmt"
	"sort"

	"github.com/spec-kit/gate-checkin/internal/domain"
	apperrors "github.com/spec-kit/gate-checkin/pkg/util/errorutil"
)

// Capability is an operation category guarded by the access gate.
type Capability string

const (
	CapAuthenticate      Capability = "authenticate"
	CapViewEvents        Capability = "view_events"
	CapManageEvents      Capability = "manage_events"
	CapSelfRegister      Capability = "self_register"
	CapViewOwnTickets    Capability = "view_own_tickets"
	CapSearchTickets     Capability = "search_tickets"
	CapOperateScanner    Capability = "operate_scanner"
	CapViewAnalytics     Capability = "view_analytics"
	CapReadAnnouncements Capability = "read_announcements"
	CapPostAnnouncements Capability = "post_announcements"
	CapManageData        Capability = "manage_data"
)

// defaultCapabilities is the static role table. Guests may only authenticate.
var defaultCapabilities = map[domain.Role][]Capability{
	domain.RoleGuest: {CapAuthenticate},
	domain.RoleAttendee: {
		CapViewEvents,
		CapSelfRegister,
		CapViewOwnTickets,
		CapReadAnnouncements,
	},
	domain.RoleOrganizer: {
		CapViewEvents,
		CapManageEvents,
		CapSearchTickets,
		CapOperateScanner,
		CapViewAnalytics,
		CapReadAnnouncements,
		CapPostAnnouncements,
		CapManageData,
	},
}

// Principal is the explicit session context passed to every operation.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Role   domain.Role
}

// Guest returns the principal of an unauthenticated visitor.
func Guest() *Principal {
	return &Principal{Role: domain.RoleGuest}
}

// EffectiveRole treats a nil principal as a guest.
func (p *Principal) EffectiveRole() domain.Role {
	if p == nil || p.Role == "" {
		return domain.RoleGuest
	}
	return p.Role
}

// IsAuthenticated reports whether the principal belongs to an account.
func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.UserID != "" && p.EffectiveRole() != domain.RoleGuest
}

// Gate maps roles to the capabilities they may invoke.
type Gate struct {
	table map[domain.Role]map[Capability]struct{}
}

// NewGate builds the gate from the default role table.
func NewGate() *Gate {
	table := make(map[domain.Role]map[Capability]struct{}, len(defaultCapabilities))
	for role, caps := range defaultCapabilities {
		set := make(map[Capability]struct{}, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		table[role] = set
	}
	return &Gate{table: table}
}

// Allows reports whether role holds capability.
func (g *Gate) Allows(role domain.Role, capability Capability) bool {
	_, ok := g.table[role][capability]
	return ok
}

// Check returns an authorization error when the principal lacks capability.
func (g *Gate) Check(p *Principal, capability Capability) error {
	role := p.EffectiveRole()
	if g.Allows(role, capability) {
		return nil
	}
	return apperrors.NewForbidden(fmt.Sprintf("role %s is not permitted to %s", role, capability))
}

// Capabilities lists what role may do, sorted.
func (g *Gate) Capabilities(role domain.Role) []Capability {
	caps := make([]Capability, 0, len(g.table[role]))
	for c := range g.table[role] {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}
