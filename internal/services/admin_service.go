package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pratik860s/Autopart-Backend/internal/apperr"
	"github.com/pratik860s/Autopart-Backend/internal/db"
	"github.com/pratik860s/Autopart-Backend/internal/models"
)

// DashboardStats is the headline-number payload for the admin dashboard.
type DashboardStats struct {
	TotalUsers        int64 `json:"total_users"`
	TotalBuyers       int64 `json:"total_buyers"`
	TotalSellers      int64 `json:"total_sellers"`
	PendingSellers    int64 `json:"pending_sellers"`
	PhantomBuyers     int64 `json:"phantom_buyers"`
	TotalEnquiries    int64 `json:"total_enquiries"`
	OpenEnquiries     int64 `json:"open_enquiries"`
	EnquiriesThisWeek int64 `json:"enquiries_this_week"`
	TotalQuotations   int64 `json:"total_quotations"`
	OpenFeedback      int64 `json:"open_feedback"`
}

// AdminConversation is one buyer/seller conversation as the dashboard shows
// it: the room plus its most recent message.
type AdminConversation struct {
	RoomID      string         `json:"room_id"`
	LastMessage models.Message `json:"last_message"`
}

// IAdminService serves the admin dashboard: headline stats plus paginated
// listings across every buyer and seller.
type IAdminService interface {
	GetDashboardStats(ctx context.Context) (*DashboardStats, error)
	ListEnquiries(ctx context.Context, status models.EnquiryStatus, page, limit int) ([]models.Enquiry, int64, error)
	ListQuotations(ctx context.Context, page, limit int) ([]models.Quotation, int64, error)
	ListConversations(ctx context.Context) ([]AdminConversation, error)
}

// adminService implements IAdminService.
type adminService struct {
	db *mongo.Database
}

// NewAdminService creates a new AdminService.
func NewAdminService(database *mongo.Database) IAdminService {
	return &adminService{db: database}
}

func (s *adminService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}
	weekAgo := time.Now().UTC().AddDate(0, 0, -7)

	counts := []struct {
		coll   string
		filter bson.M
		dest   *int64
	}{
		{db.CollUsers, bson.M{"deleted": false}, &stats.TotalUsers},
		{db.CollUsers, bson.M{"deleted": false, "role": models.RoleBuyer}, &stats.TotalBuyers},
		{db.CollUsers, bson.M{"deleted": false, "role": models.RoleSeller}, &stats.TotalSellers},
		{db.CollUsers, bson.M{"deleted": false, "role": models.RoleSeller, "status": models.UserStatusPending}, &stats.PendingSellers},
		{db.CollUsers, bson.M{"deleted": false, "phantom": true}, &stats.PhantomBuyers},
		{db.CollEnquiries, bson.M{}, &stats.TotalEnquiries},
		{db.CollEnquiries, bson.M{"status": models.EnquiryStatusOpen}, &stats.OpenEnquiries},
		{db.CollEnquiries, bson.M{"created_at": bson.M{"$gte": weekAgo}}, &stats.EnquiriesThisWeek},
		{db.CollQuotations, bson.M{}, &stats.TotalQuotations},
		{db.CollFeedback, bson.M{"status": models.FeedbackStatusOpen}, &stats.OpenFeedback},
	}
	for _, c := range counts {
		n, err := s.db.Collection(c.coll).CountDocuments(ctx, c.filter)
		if err != nil {
			return nil, apperr.Internal(err, "failed to count %s", c.coll)
		}
		*c.dest = n
	}
	return stats, nil
}

func normalizePage(page, limit int) (int64, int64) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return int64((page - 1) * limit), int64(limit)
}

func (s *adminService) ListEnquiries(ctx context.Context, status models.EnquiryStatus, page, limit int) ([]models.Enquiry, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	skip, lim := normalizePage(page, limit)

	coll := s.db.Collection(db.CollEnquiries)
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Internal(err, "failed to count enquiries")
	}
	cursor, err := coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetSkip(skip).SetLimit(lim))
	if err != nil {
		return nil, 0, apperr.Internal(err, "failed to list enquiries")
	}
	defer cursor.Close(ctx)
	var enquiries []models.Enquiry
	if err = cursor.All(ctx, &enquiries); err != nil {
		return nil, 0, apperr.Internal(err, "failed to decode enquiries")
	}
	return enquiries, total, nil
}

func (s *adminService) ListQuotations(ctx context.Context, page, limit int) ([]models.Quotation, int64, error) {
	skip, lim := normalizePage(page, limit)

	coll := s.db.Collection(db.CollQuotations)
	total, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, apperr.Internal(err, "failed to count quotations")
	}
	cursor, err := coll.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetSkip(skip).SetLimit(lim))
	if err != nil {
		return nil, 0, apperr.Internal(err, "failed to list quotations")
	}
	defer cursor.Close(ctx)
	var quotations []models.Quotation
	if err = cursor.All(ctx, &quotations); err != nil {
		return nil, 0, apperr.Internal(err, "failed to decode quotations")
	}
	return quotations, total, nil
}

func (s *adminService) ListConversations(ctx context.Context) ([]AdminConversation, error) {
	// Latest message per room across all users, newest room first.
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":  "$room_id",
			"last": bson.M{"$first": "$$ROOT"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last.created_at", Value: -1}}}},
	}
	cursor, err := s.db.Collection(db.CollMessages).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperr.Internal(err, "failed to aggregate conversations")
	}
	defer cursor.Close(ctx)

	var rows []struct {
		RoomID string         `bson:"_id"`
		Last   models.Message `bson:"last"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, apperr.Internal(err, "failed to decode conversations")
	}
	conversations := make([]AdminConversation, 0, len(rows))
	for _, row := range rows {
		conversations = append(conversations, AdminConversation{RoomID: row.RoomID, LastMessage: row.Last})
	}
	return conversations, nil
}
