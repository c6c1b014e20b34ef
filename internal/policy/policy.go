// Package policy is the single place where row-level authorization is
// decided. Every store asks it before touching a table: reads are narrowed
// to the rows the principal may see, writes are rejected with
// ErrPermissionDenied.
package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

var ErrPermissionDenied = errors.New("permission denied")

type Role string

const (
	RoleAnon          Role = "anon"
	RoleAuthenticated Role = "authenticated"
	RoleAdmin         Role = "admin"
	RoleServiceRole   Role = "service_role"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAnon, RoleAuthenticated, RoleAdmin, RoleServiceRole:
		return true
	}
	return false
}

// Principal is who is asking. UserID is empty for anon and service_role.
type Principal struct {
	Role   Role
	UserID string
}

func Anonymous() Principal { return Principal{Role: RoleAnon} }

func Service() Principal { return Principal{Role: RoleServiceRole} }

func User(id string) Principal { return Principal{Role: RoleAuthenticated, UserID: id} }

func Admin(id string) Principal { return Principal{Role: RoleAdmin, UserID: id} }

type Op string

const (
	OpSelect Op = "select"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

type Table string

const (
	TableIdentities      Table = "identities"
	TableUsers           Table = "users"
	TableCustomers       Table = "customers"
	TableSizes           Table = "sizes"
	TableColors          Table = "colors"
	TableProducts        Table = "products"
	TableProductVariants Table = "product_variants"
	TableProductChanges  Table = "product_changes"
	TablePrices          Table = "prices"
	TableOrderStatuses   Table = "order_statuses"
	TableOrders          Table = "orders"
	TableOrderItems      Table = "order_items"
	TableOrderChanges    Table = "order_changes"
)

// Access is how much of a table a rule grants.
type Access int

const (
	None Access = iota
	Own
	All
)

func (a Access) String() string {
	switch a {
	case Own:
		return "own"
	case All:
		return "all"
	}
	return "none"
}

type Rule struct {
	Table  Table
	Op     Op
	Role   Role
	Access Access
}

type key struct {
	table Table
	op    Op
	role  Role
}

// Policy is an immutable rule table. Anything not listed is denied.
type Policy struct {
	rules  map[key]Access
	owners map[Table]string
}

func New(rules []Rule, owners map[Table]string) *Policy {
	p := &Policy{rules: make(map[key]Access, len(rules)), owners: make(map[Table]string, len(owners))}
	for _, r := range rules {
		p.rules[key{r.Table, r.Op, r.Role}] = r.Access
	}
	for t, clause := range owners {
		p.owners[t] = clause
	}
	return p
}

var (
	everyone = []Role{RoleAnon, RoleAuthenticated, RoleAdmin, RoleServiceRole}
	writers  = []Role{RoleAdmin, RoleServiceRole}
	allOps   = []Op{OpSelect, OpInsert, OpUpdate, OpDelete}
	writeOps = []Op{OpInsert, OpUpdate, OpDelete}
)

func grant(out []Rule, t Table, ops []Op, roles []Role, a Access) []Rule {
	for _, op := range ops {
		for _, r := range roles {
			out = append(out, Rule{Table: t, Op: op, Role: r, Access: a})
		}
	}
	return out
}

// Default returns the storefront rule set.
func Default() *Policy {
	var rules []Rule

	for _, t := range []Table{TableSizes, TableColors, TableProducts, TableProductVariants, TableOrderStatuses} {
		rules = grant(rules, t, []Op{OpSelect}, everyone, All)
		rules = grant(rules, t, writeOps, writers, All)
	}

	// Profiles belong to the identity; rows are only created on registration.
	rules = grant(rules, TableUsers, []Op{OpSelect, OpUpdate}, []Role{RoleAuthenticated, RoleAdmin}, Own)
	rules = grant(rules, TableUsers, allOps, []Role{RoleServiceRole}, All)
	rules = grant(rules, TableIdentities, allOps, []Role{RoleServiceRole}, All)
	rules = grant(rules, TableCustomers, allOps, []Role{RoleServiceRole}, All)

	rules = grant(rules, TablePrices, allOps, writers, All)

	rules = grant(rules, TableOrders, []Op{OpSelect}, []Role{RoleAuthenticated}, Own)
	rules = grant(rules, TableOrderItems, []Op{OpSelect}, []Role{RoleAuthenticated}, Own)
	rules = grant(rules, TableOrders, []Op{OpSelect}, []Role{RoleAdmin}, All)
	rules = grant(rules, TableOrderItems, []Op{OpSelect}, []Role{RoleAdmin}, All)
	rules = grant(rules, TableOrders, allOps, []Role{RoleServiceRole}, All)
	rules = grant(rules, TableOrderItems, allOps, []Role{RoleServiceRole}, All)

	// Change logs are append-only for everyone.
	rules = grant(rules, TableProductChanges, []Op{OpSelect}, []Role{RoleAdmin, RoleServiceRole}, All)
	rules = grant(rules, TableProductChanges, []Op{OpInsert}, writers, All)
	rules = grant(rules, TableOrderChanges, []Op{OpSelect}, []Role{RoleAdmin, RoleServiceRole}, All)
	rules = grant(rules, TableOrderChanges, []Op{OpInsert}, []Role{RoleServiceRole}, All)

	return New(rules, map[Table]string{
		TableUsers:      "id = ?",
		TableOrders:     "user_id = ?",
		TableOrderItems: "order_id IN (SELECT id FROM orders WHERE user_id = ?)",
	})
}

// Access reports the grant for p on (t, op). An Own grant without a user id
// collapses to None.
func (pol *Policy) Access(p Principal, t Table, op Op) Access {
	a := pol.rules[key{t, op, p.Role}]
	if a == Own && (p.UserID == "" || pol.owners[t] == "") {
		return None
	}
	return a
}

// Authorize returns the grant or ErrPermissionDenied.
func (pol *Policy) Authorize(p Principal, t Table, op Op) (Access, error) {
	a := pol.Access(p, t, op)
	if a == None {
		return None, fmt.Errorf("%w: %s may not %s %s", ErrPermissionDenied, p.Role, op, t)
	}
	return a, nil
}

// AuthorizeRow is Authorize for a single existing row whose owner is known.
func (pol *Policy) AuthorizeRow(p Principal, t Table, op Op, ownerID string) error {
	a, err := pol.Authorize(p, t, op)
	if err != nil {
		return err
	}
	if a == Own && ownerID != p.UserID {
		return fmt.Errorf("%w: %s row is not owned by %s", ErrPermissionDenied, t, p.UserID)
	}
	return nil
}

// Scope returns a gorm scope narrowing a query on t to what p may see for
// op. The bool is false when nothing is visible; callers return an empty
// result in that case instead of an error.
func (pol *Policy) Scope(p Principal, t Table, op Op) (func(*gorm.DB) *gorm.DB, bool) {
	switch pol.Access(p, t, op) {
	case All:
		return func(db *gorm.DB) *gorm.DB { return db }, true
	case Own:
		clause, uid := pol.owners[t], p.UserID
		return func(db *gorm.DB) *gorm.DB { return db.Where(clause, uid) }, true
	}
	return nil, false
}

// ReadScope is Scope for OpSelect.
func (pol *Policy) ReadScope(p Principal, t Table) (func(*gorm.DB) *gorm.DB, bool) {
	return pol.Scope(p, t, OpSelect)
}

// Visible decides whether a change on a row owned by ownerID may be shown to
// p. Rows of tables without an owner pass ownerID "".
func (pol *Policy) Visible(p Principal, t Table, ownerID string) bool {
	switch pol.Access(p, t, OpSelect) {
	case All:
		return true
	case Own:
		return ownerID != "" && ownerID == p.UserID
	}
	return false
}

// Rules lists every non-none grant, sorted by table, op, role.
func (pol *Policy) Rules() []Rule {
	out := make([]Rule, 0, len(pol.rules))
	for k, a := range pol.rules {
		if a == None {
			continue
		}
		out = append(out, Rule{Table: k.table, Op: k.op, Role: k.role, Access: a})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		if out[i].Op != out[j].Op {
			return opRank(out[i].Op) < opRank(out[j].Op)
		}
		return out[i].Role < out[j].Role
	})
	return out
}

func opRank(op Op) int {
	for i, o := range allOps {
		if o == op {
			return i
		}
	}
	return len(allOps)
}

// Describe renders the rule table one grant per line, for audits.
func (pol *Policy) Describe() string {
	var b strings.Builder
	for _, r := range pol.Rules() {
		fmt.Fprintf(&b, "%-16s %-6s %-13s %s", r.Table, r.Op, r.Role, r.Access)
		if r.Access == Own {
			fmt.Fprintf(&b, " (%s)", pol.owners[r.Table])
		}
		b.WriteByte('\n')
	}
	return b.String()
}
