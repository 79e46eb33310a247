package legacy

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection names in the legacy database.
const (
	CollClients = "clients"
	CollSites   = "sites"
	CollUsers   = "users"
	CollAssets  = "assets"
	CollStock   = "stock"
	CollTickets = "tickets"
)

type Client struct {
	ID           primitive.ObjectID `bson:"_id"`
	Name         string             `bson:"name"`
	Code         string             `bson:"code"`
	ContactName  string             `bson:"contactName,omitempty"`
	ContactEmail string             `bson:"contactEmail,omitempty"`
	ContactPhone string             `bson:"contactPhone,omitempty"`
	Address      string             `bson:"address,omitempty"`
	Status       string             `bson:"status"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

type Site struct {
	ID       primitive.ObjectID `bson:"_id"`
	ClientID primitive.ObjectID `bson:"clientId"`
	Name     string             `bson:"name"`
	Code     string             `bson:"code"`
	Address  string             `bson:"address,omitempty"`
	IsActive bool               `bson:"isActive"`
}

type User struct {
	ID       primitive.ObjectID  `bson:"_id"`
	ClientID *primitive.ObjectID `bson:"clientId,omitempty"`
	SiteID   *primitive.ObjectID `bson:"siteId,omitempty"`
	Username string              `bson:"username"`
	Password string              `bson:"password"`
	FullName string              `bson:"fullName,omitempty"`
	Email    string              `bson:"email,omitempty"`
	Role     string              `bson:"role"`
	IsActive bool                `bson:"isActive"`
}

type Asset struct {
	ID            primitive.ObjectID  `bson:"_id"`
	ClientID      primitive.ObjectID  `bson:"clientId"`
	SiteID        *primitive.ObjectID `bson:"siteId,omitempty"`
	Code          string              `bson:"assetCode"`
	SerialNumber  string              `bson:"serialNumber,omitempty"`
	AssetType     string              `bson:"assetType"`
	Make          string              `bson:"make,omitempty"`
	Model         string              `bson:"model,omitempty"`
	Location      string              `bson:"location,omitempty"`
	IPAddress     string              `bson:"ipAddress,omitempty"`
	Status        string              `bson:"status"`
	InstalledAt   *time.Time          `bson:"installationDate,omitempty"`
	WarrantyUntil *time.Time          `bson:"warrantyExpiry,omitempty"`
	Notes         string              `bson:"notes,omitempty"`
}

type StockItem struct {
	ID          primitive.ObjectID `bson:"_id"`
	ClientID    primitive.ObjectID `bson:"clientId"`
	SiteID      primitive.ObjectID `bson:"siteId"`
	ItemCode    string             `bson:"itemCode"`
	Description string             `bson:"description,omitempty"`
	AssetType   string             `bson:"assetType,omitempty"`
	Make        string             `bson:"make,omitempty"`
	Model       string             `bson:"model,omitempty"`
	Condition   string             `bson:"condition"`
	Quantity    int                `bson:"quantity"`
}

type Ticket struct {
	ID          primitive.ObjectID  `bson:"_id"`
	Number      string              `bson:"ticketNumber"`
	ClientID    primitive.ObjectID  `bson:"clientId"`
	SiteID      *primitive.ObjectID `bson:"siteId,omitempty"`
	AssetID     *primitive.ObjectID `bson:"assetId,omitempty"`
	Title       string              `bson:"title"`
	Description string              `bson:"description,omitempty"`
	Category    string              `bson:"category"`
	Priority    string              `bson:"priority"`
	Status      string              `bson:"status"`
	CreatedBy   *primitive.ObjectID `bson:"createdBy,omitempty"`
	AssignedTo  *primitive.ObjectID `bson:"assignedTo,omitempty"`
	DueAt       *time.Time          `bson:"dueDate,omitempty"`
	CreatedAt   time.Time           `bson:"createdAt"`
	ResolvedAt  *time.Time          `bson:"resolvedAt,omitempty"`
	ClosedAt    *time.Time          `bson:"closedAt,omitempty"`
}
