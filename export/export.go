// Package export renders list data as XLSX workbooks or CSV.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"ticketops/store"
)

const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

var ErrUnknownResource = errors.New("unknown export resource")

// Resources that can be exported.
var Resources = []string{"tickets", "assets", "stock", "rmas", "transfers"}

// Table is one sheet of headers and text rows.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// Build loads resource for clientID (0 for every tenant) as a Table.
func Build(db *store.DB, resource string, clientID int64) (*Table, error) {
	switch resource {
	case "tickets":
		return ticketsTable(db, clientID)
	case "assets":
		return assetsTable(db, clientID)
	case "stock":
		return stockTable(db, clientID)
	case "rmas":
		return rmasTable(db, clientID)
	case "transfers":
		return transfersTable(db, clientID)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
}

func ValidFormat(f string) bool { return f == FormatXLSX || f == FormatCSV }

func ValidResource(r string) bool { return slices.Contains(Resources, r) }

func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Filename is resource-YYYYMMDD.format.
func Filename(resource, format string, now time.Time) string {
	return fmt.Sprintf("%s-%s.%s", resource, now.UTC().Format("20060102"), format)
}

// Write renders t in format to w.
func Write(w io.Writer, format string, t *Table) error {
	if format == FormatXLSX {
		return WriteXLSX(w, t)
	}
	return WriteCSV(w, t)
}

func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteXLSX writes a workbook with one sheet per table.
func WriteXLSX(w io.Writer, tables ...*Table) error {
	f, err := Workbook(tables...)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Workbook builds the sheets. Header rows are bold on a grey fill.
func Workbook(tables ...*Table) (*excelize.File, error) {
	if len(tables) == 0 {
		return nil, errors.New("workbook needs at least one table")
	}
	f := excelize.NewFile()
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	for i, t := range tables {
		if err := addSheet(f, t, headerStyle, i == 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", t.Name, err)
		}
	}
	return f, nil
}

func addSheet(f *excelize.File, t *Table, headerStyle int, first bool) error {
	name := t.Name
	if len(name) > 31 {
		name = name[:31]
	}
	if first {
		if err := f.SetSheetName("Sheet1", name); err != nil {
			return err
		}
	} else if _, err := f.NewSheet(name); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return err
	}
	if len(t.Headers) > 0 {
		if err := sw.SetColWidth(1, len(t.Headers), 16); err != nil {
			return err
		}
	}
	header := make([]any, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: h}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for r, row := range t.Rows {
		vals := make([]any, len(row))
		for i, v := range row {
			vals[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, vals); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func day(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func id(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}

func ticketsTable(db *store.DB, clientID int64) (*Table, error) {
	list, err := db.ListTickets(store.TicketFilter{ClientID: clientID, Limit: 100000})
	if err != nil {
		return nil, err
	}
	t := &Table{Name: "Tickets", Headers: []string{"Number", "Client", "Site", "Asset", "Title", "Category", "Priority", "Status", "Source", "Assigned To", "Due", "Created", "Resolved", "Closed"}}
	for _, tk := range list {
		t.Rows = append(t.Rows, []string{
			tk.Number, strconv.FormatInt(tk.ClientID, 10), id(tk.SiteID), id(tk.AssetID), tk.Title, tk.Category,
			tk.Priority, tk.Status, tk.Source, id(tk.AssignedTo), day(tk.DueAt), day(&tk.CreatedAt), day(tk.ResolvedAt), day(tk.ClosedAt),
		})
	}
	return t, nil
}

func assetsTable(db *store.DB, clientID int64) (*Table, error) {
	list, err := db.ListAssets(store.AssetFilter{ClientID: clientID, Limit: 100000})
	if err != nil {
		return nil, err
	}
	t := &Table{Name: "Assets", Headers: []string{"Code", "Client", "Site", "Type", "Make", "Model", "Serial", "IP", "Location", "Status", "Installed", "Warranty Until"}}
	for _, a := range list {
		t.Rows = append(t.Rows, []string{
			a.Code, strconv.FormatInt(a.ClientID, 10), id(a.SiteID), a.AssetType, a.Make, a.Model, a.SerialNumber,
			a.IPAddress, a.Location, a.Status, day(a.InstalledAt), day(a.WarrantyUntil),
		})
	}
	return t, nil
}

func stockTable(db *store.DB, clientID int64) (*Table, error) {
	list, err := db.ListStock(store.StockFilter{ClientID: clientID})
	if err != nil {
		return nil, err
	}
	t := &Table{Name: "Stock", Headers: []string{"Item Code", "Client", "Site", "Description", "Type", "Make", "Model", "Condition", "Quantity"}}
	for _, s := range list {
		t.Rows = append(t.Rows, []string{
			s.ItemCode, strconv.FormatInt(s.ClientID, 10), strconv.FormatInt(s.SiteID, 10), s.Description,
			s.AssetType, s.Make, s.Model, s.Condition, strconv.Itoa(s.Quantity),
		})
	}
	return t, nil
}

func rmasTable(db *store.DB, clientID int64) (*Table, error) {
	list, err := db.ListRMAs(store.RMAFilter{ClientID: clientID, Limit: 100000})
	if err != nil {
		return nil, err
	}
	t := &Table{Name: "RMAs", Headers: []string{"Number", "Client", "Asset", "Ticket", "Type", "Vendor", "Status", "Repair", "Replacement", "Courier", "Outbound", "Return", "Created", "Closed"}}
	for _, r := range list {
		t.Rows = append(t.Rows, []string{
			r.Number, strconv.FormatInt(r.ClientID, 10), strconv.FormatInt(r.AssetID, 10), id(r.TicketID), r.Type, r.Vendor,
			r.Status, r.RepairStatus, r.ReplacementStatus, r.Courier, r.OutboundTracking, r.ReturnTracking, day(&r.CreatedAt), day(r.ClosedAt),
		})
	}
	return t, nil
}

func transfersTable(db *store.DB, clientID int64) (*Table, error) {
	list, err := db.ListTransfers(store.TransferFilter{ClientID: clientID, Limit: 100000})
	if err != nil {
		return nil, err
	}
	t := &Table{Name: "Transfers", Headers: []string{"Number", "Client", "From Site", "To Site", "Status", "Items", "Courier", "Tracking", "Created", "Dispatched", "Completed"}}
	for _, tr := range list {
		items, err := db.ListTransferItems(tr.ID)
		if err != nil {
			return nil, err
		}
		qty := 0
		for _, it := range items {
			qty += it.Quantity
		}
		t.Rows = append(t.Rows, []string{
			tr.Number, strconv.FormatInt(tr.ClientID, 10), strconv.FormatInt(tr.FromSiteID, 10), strconv.FormatInt(tr.ToSiteID, 10),
			tr.Status, strconv.Itoa(qty), tr.Courier, tr.TrackingNo, day(&tr.CreatedAt), day(tr.DispatchedAt), day(tr.CompletedAt),
		})
	}
	return t, nil
}
