// Package legacy migrates the old MongoDB deployment into the SQL store.
package legacy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"ticketops/logging"
	"ticketops/rights"
	"ticketops/store"
	"ticketops/tickets"
)

// SourceLegacy marks imported tickets.
const SourceLegacy = "legacy"

// disabledHash never verifies, forcing a password reset.
const disabledHash = "!"

var errDryRun = errors.New("dry run")

// Report counts what an import created and skipped per kind.
type Report struct {
	DryRun   bool           `json:"dry_run"`
	Created  map[string]int `json:"created"`
	Skipped  map[string]int `json:"skipped"`
	Warnings []string       `json:"warnings,omitempty"`
}

func newReport(dryRun bool) *Report {
	return &Report{DryRun: dryRun, Created: map[string]int{}, Skipped: map[string]int{}}
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

type Importer struct {
	db  *store.DB
	src Source
	log *zap.Logger
}

func NewImporter(db *store.DB, src Source, log *zap.Logger) *Importer {
	return &Importer{db: db, src: src, log: logging.OrNop(log).Named("legacy")}
}

// ids maps legacy ObjectIDs to new row ids for one kind.
type ids map[primitive.ObjectID]int64

func (m ids) ref(oid *primitive.ObjectID) *int64 {
	if oid == nil {
		return nil
	}
	if id, ok := m[*oid]; ok {
		return &id
	}
	return nil
}

type snapshot struct {
	clients []Client
	sites   []Site
	users   []User
	assets  []Asset
	stock   []StockItem
	tickets []Ticket
}

func (im *Importer) load(ctx context.Context) (*snapshot, error) {
	var s snapshot
	var err error
	if s.clients, err = im.src.Clients(ctx); err != nil {
		return nil, err
	}
	if s.sites, err = im.src.Sites(ctx); err != nil {
		return nil, err
	}
	if s.users, err = im.src.Users(ctx); err != nil {
		return nil, err
	}
	if s.assets, err = im.src.Assets(ctx); err != nil {
		return nil, err
	}
	if s.stock, err = im.src.Stock(ctx); err != nil {
		return nil, err
	}
	if s.tickets, err = im.src.Tickets(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}

// Run imports everything in one transaction. Records whose unique key
// already exists are mapped and skipped, so a rerun only adds what is new.
// A dry run performs the same work and rolls it back.
func (im *Importer) Run(ctx context.Context, dryRun bool) (*Report, error) {
	snap, err := im.load(ctx)
	if err != nil {
		return nil, err
	}
	rep := newReport(dryRun)
	err = im.db.WithTx(func(tx *store.DB) error {
		ir := &importRun{tx: tx, rep: rep, clients: ids{}, sites: ids{}, users: ids{}, assets: ids{}}
		steps := []func(*snapshot) error{ir.importClients, ir.importSites, ir.importUsers, ir.importAssets, ir.importStock, ir.importTickets}
		for _, step := range steps {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := step(snap); err != nil {
				return err
			}
		}
		if dryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return nil, err
	}
	im.log.Info("legacy import finished",
		zap.Bool("dry_run", dryRun),
		zap.Any("created", rep.Created),
		zap.Any("skipped", rep.Skipped),
		zap.Int("warnings", len(rep.Warnings)))
	return rep, nil
}

type importRun struct {
	tx      *store.DB
	rep     *Report
	clients ids
	sites   ids
	users   ids
	assets  ids
}

func (r *importRun) importClients(s *snapshot) error {
	for _, c := range s.clients {
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		if code == "" || strings.TrimSpace(c.Name) == "" {
			r.rep.warn("client %s: missing name or code", c.ID.Hex())
			continue
		}
		if existing, err := r.tx.GetClientByCode(code); err == nil {
			r.clients[c.ID] = existing.ID
			r.rep.Skipped["clients"]++
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		row := &store.Client{
			Name: c.Name, Code: code, ContactName: c.ContactName, ContactEmail: c.ContactEmail,
			ContactPhone: c.ContactPhone, Address: c.Address, Status: clientStatus(c.Status),
		}
		if err := r.tx.CreateClient(row); err != nil {
			return fmt.Errorf("client %s: %w", code, err)
		}
		r.clients[c.ID] = row.ID
		r.rep.Created["clients"]++
	}
	return nil
}

func (r *importRun) importSites(s *snapshot) error {
	for _, st := range s.sites {
		clientID, ok := r.clients[st.ClientID]
		if !ok {
			r.rep.warn("site %s: unknown client %s", st.ID.Hex(), st.ClientID.Hex())
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(st.Code))
		if code == "" {
			r.rep.warn("site %s: missing code", st.ID.Hex())
			continue
		}
		if existing, err := r.tx.GetSiteByCode(clientID, code); err == nil {
			r.sites[st.ID] = existing.ID
			r.rep.Skipped["sites"]++
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		row := &store.Site{ClientID: clientID, Name: st.Name, Code: code, Address: st.Address, Active: st.IsActive}
		if err := r.tx.CreateSite(row); err != nil {
			return fmt.Errorf("site %s: %w", code, err)
		}
		r.sites[st.ID] = row.ID
		r.rep.Created["sites"]++
	}
	return nil
}

func (r *importRun) importUsers(s *snapshot) error {
	for _, u := range s.users {
		username := strings.ToLower(strings.TrimSpace(u.Username))
		if username == "" {
			r.rep.warn("user %s: missing username", u.ID.Hex())
			continue
		}
		role := userRole(u.Role)
		clientID := r.clients.ref(u.ClientID)
		if clientID == nil && role != rights.RoleSuperAdmin {
			r.rep.warn("user %s: no tenant for role %s", username, role)
			continue
		}
		if existing, err := r.tx.GetUserByUsername(username); err == nil {
			r.users[u.ID] = existing.ID
			r.rep.Skipped["users"]++
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		row := &store.User{
			ClientID: clientID, SiteID: r.sites.ref(u.SiteID), Username: username,
			PasswordHash: u.Password, FullName: u.FullName, Email: u.Email, Role: role, Active: u.IsActive,
		}
		if !strings.HasPrefix(u.Password, "$2") {
			row.PasswordHash = disabledHash
			row.Active = false
			r.rep.warn("user %s: password is not bcrypt, account disabled until reset", username)
		}
		if err := r.tx.CreateUser(row); err != nil {
			return fmt.Errorf("user %s: %w", username, err)
		}
		r.users[u.ID] = row.ID
		r.rep.Created["users"]++
	}
	return nil
}

func (r *importRun) importAssets(s *snapshot) error {
	for _, a := range s.assets {
		clientID, ok := r.clients[a.ClientID]
		if !ok {
			r.rep.warn("asset %s: unknown client %s", a.ID.Hex(), a.ClientID.Hex())
			continue
		}
		code := strings.TrimSpace(a.Code)
		if code == "" {
			r.rep.warn("asset %s: missing code", a.ID.Hex())
			continue
		}
		if existing, err := r.tx.GetAssetByCode(clientID, code); err == nil {
			r.assets[a.ID] = existing.ID
			r.rep.Skipped["assets"]++
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		row := &store.Asset{
			ClientID: clientID, SiteID: r.sites.ref(a.SiteID), Code: code, SerialNumber: a.SerialNumber,
			AssetType: strings.ToLower(a.AssetType), Make: a.Make, Model: a.Model, Location: a.Location,
			IPAddress: a.IPAddress, Status: assetStatus(a.Status), InstalledAt: a.InstalledAt,
			WarrantyUntil: a.WarrantyUntil, Notes: a.Notes,
		}
		if err := r.tx.CreateAsset(row); err != nil {
			return fmt.Errorf("asset %s: %w", code, err)
		}
		r.assets[a.ID] = row.ID
		r.rep.Created["assets"]++
	}
	return nil
}

func (r *importRun) importStock(s *snapshot) error {
	for _, it := range s.stock {
		clientID, ok := r.clients[it.ClientID]
		siteID, siteOK := r.sites[it.SiteID]
		if !ok || !siteOK {
			r.rep.warn("stock %s: unknown client or site", it.ID.Hex())
			continue
		}
		code := strings.TrimSpace(it.ItemCode)
		if code == "" {
			r.rep.warn("stock %s: missing item code", it.ID.Hex())
			continue
		}
		cond := strings.ToLower(it.Condition)
		if !slices.Contains([]string{store.ConditionNew, store.ConditionRefurbished, store.ConditionFaulty}, cond) {
			cond = store.ConditionNew
		}
		if _, err := r.tx.FindStockItem(siteID, code, cond); err == nil {
			r.rep.Skipped["stock"]++
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		row := &store.StockItem{
			ClientID: clientID, SiteID: siteID, ItemCode: code, Description: it.Description,
			AssetType: strings.ToLower(it.AssetType), Make: it.Make, Model: it.Model,
			Condition: cond, Quantity: max(it.Quantity, 0),
		}
		if err := r.tx.CreateStockItem(row); err != nil {
			return fmt.Errorf("stock %s: %w", code, err)
		}
		r.rep.Created["stock"]++
	}
	return nil
}

func (r *importRun) importTickets(s *snapshot) error {
	for _, t := range s.tickets {
		clientID, ok := r.clients[t.ClientID]
		if !ok {
			r.rep.warn("ticket %s: unknown client %s", t.ID.Hex(), t.ClientID.Hex())
			continue
		}
		number := strings.TrimSpace(t.Number)
		if number == "" {
			n, err := r.tx.NextNumber(store.PrefixTicket)
			if err != nil {
				return err
			}
			number = n
		} else if _, err := r.tx.GetTicketByNumber(number); err == nil {
			r.rep.Skipped["tickets"]++
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if seq, ok := ticketSeq(number); ok {
			if err := r.tx.RaiseCounter(store.PrefixTicket, seq); err != nil {
				return err
			}
		}
		row := &store.Ticket{
			Number: number, ClientID: clientID, SiteID: r.sites.ref(t.SiteID), AssetID: r.assets.ref(t.AssetID),
			Title: t.Title, Description: t.Description, Category: ticketCategory(t.Category),
			Priority: ticketPriority(t.Priority), Status: ticketStatus(t.Status), Source: SourceLegacy,
			ReportedBy: r.users.ref(t.CreatedBy), AssignedTo: r.users.ref(t.AssignedTo),
			DueAt: t.DueAt, CreatedAt: t.CreatedAt, ResolvedAt: t.ResolvedAt, ClosedAt: t.ClosedAt,
		}
		if strings.TrimSpace(row.Title) == "" {
			row.Title = "(imported ticket " + number + ")"
		}
		if err := r.tx.CreateTicket(row, "legacy-import"); err != nil {
			return fmt.Errorf("ticket %s: %w", number, err)
		}
		if row.ResolvedAt != nil || row.ClosedAt != nil {
			if err := r.tx.SaveTicketState(row); err != nil {
				return fmt.Errorf("ticket %s state: %w", number, err)
			}
		}
		r.rep.Created["tickets"]++
	}
	return nil
}

// ticketSeq extracts n from TKT-000n.
func ticketSeq(number string) (int64, bool) {
	rest, ok := strings.CutPrefix(number, store.PrefixTicket+"-")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	return n, err == nil && n > 0
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func clientStatus(s string) string {
	switch normalize(s) {
	case store.ClientPending:
		return store.ClientPending
	case store.ClientSuspended, "inactive", "disabled":
		return store.ClientSuspended
	}
	return store.ClientActive
}

func userRole(s string) string {
	switch r := normalize(s); r {
	case "superadmin", rights.RoleSuperAdmin:
		return rights.RoleSuperAdmin
	case "manager":
		return rights.RoleAdmin
	case "tech":
		return rights.RoleTechnician
	default:
		if rights.ValidRole(r) {
			return r
		}
	}
	return rights.RoleViewer
}

func assetStatus(s string) string {
	switch n := normalize(s); n {
	case store.AssetFaulty, store.AssetUnderRMA, store.AssetSpare, store.AssetDecommissioned:
		return n
	case "in_rma", "rma":
		return store.AssetUnderRMA
	case "retired", "scrapped":
		return store.AssetDecommissioned
	}
	return store.AssetActive
}

func ticketStatus(s string) string {
	n := normalize(s)
	switch n {
	case "new", "":
		return tickets.StatusOpen
	case "inprogress", "working":
		return tickets.StatusInProgress
	case "pending", "hold":
		return tickets.StatusOnHold
	case "canceled":
		return tickets.StatusCancelled
	}
	if tickets.ValidStatus(n) {
		return n
	}
	return tickets.StatusOpen
}

func ticketCategory(s string) string {
	n := normalize(s)
	if slices.Contains(tickets.Categories, n) {
		return n
	}
	return "other"
}

func ticketPriority(s string) string {
	n := normalize(s)
	if n == "urgent" {
		return tickets.PriorityCritical
	}
	if slices.Contains(tickets.Priorities, n) {
		return n
	}
	return tickets.PriorityMedium
}
