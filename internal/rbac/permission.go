package rbac

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrUnknownPermission = errors.New("unknown permission")
	ErrUnknownRole       = errors.New("unknown role")
)

// Permission is a capability identifier of the form <resource>.<action>.
// Only values listed in the catalog below are valid.
type Permission string

const (
	// Work orders & jobs
	WorkOrdersView   Permission = "work_orders.view"
	WorkOrdersCreate Permission = "work_orders.create"
	WorkOrdersEdit   Permission = "work_orders.edit"
	WorkOrdersDelete Permission = "work_orders.delete"

	// Estimates & financials
	EstimatesView    Permission = "estimates.view"
	EstimatesCreate  Permission = "estimates.create"
	EstimatesApprove Permission = "estimates.approve"
	InvoicesView     Permission = "invoices.view"
	InvoicesCreate   Permission = "invoices.create"
	PaymentsProcess  Permission = "payments.process"

	// Inventory
	InventoryView   Permission = "inventory.view"
	InventoryManage Permission = "inventory.manage"

	// Customer data
	CustomersView   Permission = "customers.view"
	CustomersManage Permission = "customers.manage"

	// Settings & admin
	SettingsView   Permission = "settings.view"
	SettingsManage Permission = "settings.manage"
	UsersManage    Permission = "users.manage"
)

var catalog = [...]Permission{
	WorkOrdersView, WorkOrdersCreate, WorkOrdersEdit, WorkOrdersDelete,
	EstimatesView, EstimatesCreate, EstimatesApprove,
	InvoicesView, InvoicesCreate, PaymentsProcess,
	InventoryView, InventoryManage,
	CustomersView, CustomersManage,
	SettingsView, SettingsManage, UsersManage,
}

var catalogIndex = func() map[Permission]int {
	m := make(map[Permission]int, len(catalog))
	for i, p := range catalog {
		m[p] = i
	}
	return m
}()

// Valid reports whether p is part of the permission catalog.
func (p Permission) Valid() bool {
	_, ok := catalogIndex[p]
	return ok
}

// Resource returns the part before the dot, e.g. "inventory".
func (p Permission) Resource() string {
	resource, _, _ := strings.Cut(string(p), ".")
	return resource
}

// Action returns the part after the dot, e.g. "manage".
func (p Permission) Action() string {
	_, action, _ := strings.Cut(string(p), ".")
	return action
}

// AllPermissions returns the catalog in declaration order. The slice is a
// fresh copy on every call.
func AllPermissions() []Permission {
	out := make([]Permission, len(catalog))
	copy(out, catalog[:])
	return out
}

// PermissionsByResource groups the catalog by resource area, preserving
// catalog order inside each group.
func PermissionsByResource() map[string][]Permission {
	groups := make(map[string][]Permission)
	for _, p := range catalog {
		groups[p.Resource()] = append(groups[p.Resource()], p)
	}
	return groups
}

// ParsePermission converts s into a catalog permission.
func ParsePermission(s string) (Permission, error) {
	p := Permission(strings.TrimSpace(s))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPermission, s)
	}
	return p, nil
}

// ParsePermissions validates every entry and drops duplicates, keeping the
// first occurrence. A nil or empty input yields an empty, non-nil slice.
func ParsePermissions(values []string) ([]Permission, error) {
	out := make([]Permission, 0, len(values))
	seen := make(map[Permission]struct{}, len(values))
	for _, v := range values {
		p, err := ParsePermission(v)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// Strings converts permissions back to plain strings for storage.
func Strings(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func sortByCatalog(perms []Permission) {
	slices.SortFunc(perms, func(a, b Permission) int {
		return catalogIndex[a] - catalogIndex[b]
	})
}
