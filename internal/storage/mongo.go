package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/helphive/backend/internal/models"
)

type MongoStore struct {
	client       *mongo.Client
	db           *mongo.Database
	usersColl    *mongo.Collection
	requestsColl *mongo.Collection
	auditColl    *mongo.Collection
}

type mongoUserDoc struct {
	ID              string    `bson:"_id"`
	Name            string    `bson:"name"`
	ContactInfo     string    `bson:"contact_info"`
	PasswordHash    string    `bson:"password_hash"`
	Role            string    `bson:"role"`
	IsApproved      bool      `bson:"is_approved"`
	Location        string    `bson:"location,omitempty"`
	FullAddress     string    `bson:"full_address,omitempty"`
	AbstractAddress string    `bson:"abstract_address,omitempty"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

type mongoOfferDoc struct {
	HelperID   string    `bson:"helper_id"`
	HelperName string    `bson:"helper_name"`
	OfferedAt  time.Time `bson:"offered_at"`
}

type mongoEventDoc struct {
	Status    string    `bson:"status"`
	Timestamp time.Time `bson:"timestamp"`
	Note      string    `bson:"note,omitempty"`
	Override  bool      `bson:"override,omitempty"`
}

type mongoRequestDoc struct {
	ID                string          `bson:"_id"`
	RequesterID       string          `bson:"requester_id"`
	RequesterName     string          `bson:"requester_name"`
	Title             string          `bson:"title"`
	Description       string          `bson:"description"`
	Category          string          `bson:"category"`
	IsUrgent          bool            `bson:"is_urgent"`
	Complexity        string          `bson:"complexity"`
	EstimatedDuration string          `bson:"estimated_duration,omitempty"`
	PreferredTime     string          `bson:"preferred_time,omitempty"`
	FullAddress       string          `bson:"full_address,omitempty"`
	AbstractAddress   string          `bson:"abstract_address"`
	Status            string          `bson:"status"`
	HelperID          *string         `bson:"helper_id"`
	HelperName        string          `bson:"helper_name,omitempty"`
	Offers            []mongoOfferDoc `bson:"offers"`
	Timeline          []mongoEventDoc `bson:"timeline"`
	Version           int64           `bson:"version"`
	CreatedAt         time.Time       `bson:"created_at"`
	UpdatedAt         time.Time       `bson:"updated_at"`
}

type mongoAuditDoc struct {
	ID        string            `bson:"_id"`
	AdminID   string            `bson:"admin_id"`
	Action    string            `bson:"action"`
	RequestID string            `bson:"request_id"`
	Details   map[string]string `bson:"details,omitempty"`
	Timestamp time.Time         `bson:"timestamp"`
}

func NewMongoStore(ctx context.Context, mongoURI, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client:       client,
		db:           db,
		usersColl:    db.Collection("users"),
		requestsColl: db.Collection("help_requests"),
		auditColl:    db.Collection("admin_audit"),
	}

	// The unique contact index backs duplicate detection, so it is not best-effort.
	if _, err := s.usersColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "contact_info", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create users index: %w", err)
	}

	// Best-effort indexes.
	_, _ = s.requestsColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "requester_id", Value: 1}}},
		{Keys: bson.D{{Key: "helper_id", Value: 1}}},
	})
	_, _ = s.auditColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "request_id", Value: 1}, {Key: "timestamp", Value: 1}}},
	})

	log.Printf("MongoDB connected: db=%s", dbName)
	return s, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func userToDoc(u *models.User) mongoUserDoc {
	return mongoUserDoc{
		ID:              u.ID,
		Name:            u.Name,
		ContactInfo:     u.ContactInfo,
		PasswordHash:    u.PasswordHash,
		Role:            string(u.Role),
		IsApproved:      u.IsApproved,
		Location:        u.Location,
		FullAddress:     u.FullAddress,
		AbstractAddress: u.AbstractAddress,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func userDocToModel(d mongoUserDoc) *models.User {
	return &models.User{
		ID:              d.ID,
		Name:            d.Name,
		ContactInfo:     d.ContactInfo,
		PasswordHash:    d.PasswordHash,
		Role:            models.Role(d.Role),
		IsApproved:      d.IsApproved,
		Location:        d.Location,
		FullAddress:     d.FullAddress,
		AbstractAddress: d.AbstractAddress,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func requestToDoc(r *models.HelpRequest) mongoRequestDoc {
	d := mongoRequestDoc{
		ID:                r.ID,
		RequesterID:       r.RequesterID,
		RequesterName:     r.RequesterName,
		Title:             r.Title,
		Description:       r.Description,
		Category:          r.Category,
		IsUrgent:          r.IsUrgent,
		Complexity:        string(r.Complexity),
		EstimatedDuration: r.EstimatedDuration,
		PreferredTime:     r.PreferredTime,
		FullAddress:       r.FullAddress,
		AbstractAddress:   r.AbstractAddress,
		Status:            string(r.Status),
		HelperName:        r.HelperName,
		Offers:            make([]mongoOfferDoc, 0, len(r.Offers)),
		Timeline:          make([]mongoEventDoc, 0, len(r.Timeline)),
		Version:           r.Version,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.HelperID != "" {
		id := r.HelperID
		d.HelperID = &id
	}
	for _, o := range r.Offers {
		d.Offers = append(d.Offers, mongoOfferDoc{HelperID: o.HelperID, HelperName: o.HelperName, OfferedAt: o.OfferedAt})
	}
	for _, e := range r.Timeline {
		d.Timeline = append(d.Timeline, mongoEventDoc{Status: string(e.Status), Timestamp: e.Timestamp, Note: e.Note, Override: e.Override})
	}
	return d
}

func requestDocToModel(d mongoRequestDoc) *models.HelpRequest {
	r := &models.HelpRequest{
		ID:                d.ID,
		RequesterID:       d.RequesterID,
		RequesterName:     d.RequesterName,
		Title:             d.Title,
		Description:       d.Description,
		Category:          d.Category,
		IsUrgent:          d.IsUrgent,
		Complexity:        models.Complexity(d.Complexity),
		EstimatedDuration: d.EstimatedDuration,
		PreferredTime:     d.PreferredTime,
		FullAddress:       d.FullAddress,
		AbstractAddress:   d.AbstractAddress,
		Status:            models.Status(d.Status),
		HelperName:        d.HelperName,
		Offers:            make([]models.Offer, 0, len(d.Offers)),
		Timeline:          make([]models.TimelineEvent, 0, len(d.Timeline)),
		Version:           d.Version,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	if d.HelperID != nil {
		r.HelperID = *d.HelperID
	}
	for _, o := range d.Offers {
		r.Offers = append(r.Offers, models.Offer{HelperID: o.HelperID, HelperName: o.HelperName, OfferedAt: o.OfferedAt})
	}
	for _, e := range d.Timeline {
		r.Timeline = append(r.Timeline, models.TimelineEvent{Status: models.Status(e.Status), Timestamp: e.Timestamp, Note: e.Note, Override: e.Override})
	}
	return r
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.usersColl.InsertOne(ctx, userToDoc(user))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var d mongoUserDoc
	err := s.usersColl.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return userDocToModel(d), nil
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetUserByContactInfo(ctx context.Context, contactInfo string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"contact_info": contactInfo})
}

func (s *MongoStore) UpdateUser(ctx context.Context, user *models.User) error {
	res, err := s.usersColl.ReplaceOne(ctx, bson.M{"_id": user.ID}, userToDoc(user))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListUsers(ctx context.Context, role models.Role) ([]*models.User, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = string(role)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := s.usersColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*models.User, 0)
	for cur.Next(ctx) {
		var d mongoUserDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, userDocToModel(d))
	}
	return out, cur.Err()
}

func (s *MongoStore) CreateRequest(ctx context.Context, req *models.HelpRequest) error {
	doc := requestToDoc(req)
	doc.Version = 1
	if _, err := s.requestsColl.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	req.Version = 1
	return nil
}

func (s *MongoStore) GetRequest(ctx context.Context, id string) (*models.HelpRequest, error) {
	var d mongoRequestDoc
	err := s.requestsColl.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return requestDocToModel(d), nil
}

func (s *MongoStore) UpdateRequest(ctx context.Context, req *models.HelpRequest) error {
	doc := requestToDoc(req)
	doc.Version = req.Version + 1

	res, err := s.requestsColl.ReplaceOne(ctx, bson.M{"_id": req.ID, "version": req.Version}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Distinguish not found vs modified underneath us
		n, err := s.requestsColl.CountDocuments(ctx, bson.M{"_id": req.ID})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrStale
	}
	req.Version = doc.Version
	return nil
}

func (s *MongoStore) DeleteRequest(ctx context.Context, id string) (bool, error) {
	res, err := s.requestsColl.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func mongoRequestFilter(f models.RequestFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.RequesterID != "" {
		filter["requester_id"] = f.RequesterID
	}
	if f.HelperID != "" {
		filter["helper_id"] = f.HelperID
	} else if f.Unassigned {
		filter["helper_id"] = nil
	}
	if f.Category != "" {
		filter["category"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(f.Category) + "$", Options: "i"}
	}
	created := bson.M{}
	if !f.CreatedAfter.IsZero() {
		created["$gte"] = f.CreatedAfter
	}
	if !f.CreatedBefore.IsZero() {
		created["$lte"] = f.CreatedBefore
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}
	return filter
}

func (s *MongoStore) ListRequests(ctx context.Context, f models.RequestFilter, page models.Page) ([]*models.HelpRequest, int, error) {
	page = page.Normalize()
	filter := mongoRequestFilter(f)

	total, err := s.requestsColl.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))
	cur, err := s.requestsColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := make([]*models.HelpRequest, 0)
	for cur.Next(ctx) {
		var d mongoRequestDoc
		if err := cur.Decode(&d); err != nil {
			return nil, 0, err
		}
		out = append(out, requestDocToModel(d))
	}
	if err := cur.Err(); err != nil {
		return nil, 0, err
	}
	return out, int(total), nil
}

func (s *MongoStore) AppendAudit(ctx context.Context, entry models.AuditEntry) error {
	_, err := s.auditColl.InsertOne(ctx, mongoAuditDoc{
		ID:        entry.ID,
		AdminID:   entry.AdminID,
		Action:    entry.Action,
		RequestID: entry.RequestID,
		Details:   entry.Details,
		Timestamp: entry.Timestamp,
	})
	return err
}

func (s *MongoStore) ListAudit(ctx context.Context, requestID string) ([]models.AuditEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := s.auditColl.Find(ctx, bson.M{"request_id": requestID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.AuditEntry, 0)
	for cur.Next(ctx) {
		var d mongoAuditDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, models.AuditEntry{
			ID:        d.ID,
			AdminID:   d.AdminID,
			Action:    d.Action,
			RequestID: d.RequestID,
			Details:   d.Details,
			Timestamp: d.Timestamp,
		})
	}
	return out, cur.Err()
}
