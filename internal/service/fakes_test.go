package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/repository"
	"github.com/GTDGit/fabric_api/pkg/paystack"
)

// In-memory stores mirroring the repository semantics the services rely on.

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*models.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByResetToken(_ context.Context, tokenHash string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash &&
			u.ResetTokenExpiresAt != nil && u.ResetTokenExpiresAt.After(time.Now()) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUsers) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) ListAdmins(_ context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.users {
		if u.Role == models.RoleAdmin && u.IsActive {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id string) error { return nil }

func (f *fakeUsers) SetResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	u.ResetTokenHash = &tokenHash
	u.ResetTokenExpiresAt = &expiresAt
	return nil
}

func (f *fakeUsers) ResetPassword(_ context.Context, id, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	u.PasswordHash = passwordHash
	u.ResetTokenHash = nil
	u.ResetTokenExpiresAt = nil
	return nil
}

type fakeCategories struct {
	mu         sync.Mutex
	categories map[string]*models.Category
	dependents map[string]int
}

func newFakeCategories() *fakeCategories {
	return &fakeCategories{categories: make(map[string]*models.Category), dependents: make(map[string]int)}
}

func (f *fakeCategories) List(_ context.Context, activeOnly bool) ([]models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Category
	for _, c := range f.categories {
		if !activeOnly || c.IsActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCategories) GetByID(_ context.Context, id string) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCategories) GetBySlug(_ context.Context, slug string) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCategories) Create(_ context.Context, c *models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.categories {
		if existing.Slug == c.Slug {
			return &pq.Error{Code: "23505", Constraint: "categories_slug_key"}
		}
	}
	cp := *c
	f.categories[c.ID] = &cp
	return nil
}

func (f *fakeCategories) Update(_ context.Context, c *models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.categories[c.ID] = &cp
	return nil
}

func (f *fakeCategories) CountDependents(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.dependents[id]
	for _, c := range f.categories {
		if c.ParentID != nil && *c.ParentID == id {
			n++
		}
	}
	return n, nil
}

func (f *fakeCategories) Delete(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[id]; !ok {
		return false, nil
	}
	delete(f.categories, id)
	return true, nil
}

type fakeProducts struct {
	mu       sync.Mutex
	products map[string]*models.Product
}

func newFakeProducts(products ...*models.Product) *fakeProducts {
	f := &fakeProducts{products: make(map[string]*models.Product)}
	for _, p := range products {
		f.products[p.ID] = cloneProduct(p)
	}
	return f
}

func cloneProduct(p *models.Product) *models.Product {
	cp := *p
	cp.Variants = append([]models.Variant(nil), p.Variants...)
	return &cp
}

func (f *fakeProducts) GetByID(_ context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok || p.DeletedAt != nil {
		return nil, sql.ErrNoRows
	}
	return cloneProduct(p), nil
}

func (f *fakeProducts) GetBySlug(_ context.Context, slug string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.Slug == slug && p.DeletedAt == nil {
			return cloneProduct(p), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeProducts) List(_ context.Context, filter *models.ProductFilter) ([]models.Product, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, p := range f.products {
		if p.DeletedAt != nil || (filter.PublicOnly && !p.IsPurchasable()) {
			continue
		}
		out = append(out, *cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeProducts) checkUnique(p *models.Product) error {
	for _, other := range f.products {
		if other.ID == p.ID {
			continue
		}
		if other.Slug == p.Slug {
			return &pq.Error{Code: "23505", Constraint: "products_slug_key"}
		}
		for _, ov := range other.Variants {
			for _, v := range p.Variants {
				if strings.EqualFold(ov.SKU, v.SKU) {
					return &pq.Error{Code: "23505", Constraint: "product_variants_sku_key"}
				}
			}
		}
	}
	return nil
}

func (f *fakeProducts) Create(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkUnique(p); err != nil {
		return err
	}
	f.products[p.ID] = cloneProduct(p)
	return nil
}

func (f *fakeProducts) Update(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[p.ID]; !ok {
		return sql.ErrNoRows
	}
	if err := f.checkUnique(p); err != nil {
		return err
	}
	f.products[p.ID] = cloneProduct(p)
	return nil
}

func (f *fakeProducts) SoftDelete(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok || p.DeletedAt != nil {
		return false, nil
	}
	now := time.Now()
	p.DeletedAt = &now
	return true, nil
}

func (f *fakeProducts) BulkPublish(_ context.Context, ids []string, published bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			p.IsPublished = published
			n++
		}
	}
	return n, nil
}

func (f *fakeProducts) BulkStatus(_ context.Context, ids []string, status models.ProductStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			p.Status = status
			n++
		}
	}
	return n, nil
}

func (f *fakeProducts) setRating(productID string, summary models.RatingSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return sql.ErrNoRows
	}
	p.AverageRating = summary.Average
	p.ReviewCount = summary.Count
	return nil
}

func (f *fakeProducts) FilterOptions(_ context.Context) (*models.FilterOptions, error) {
	return &models.FilterOptions{}, nil
}

// adjust applies reservations the way the stock helpers do. The caller holds mu.
func (f *fakeProducts) adjust(reservations []models.StockReservation, sign int) ([]models.Product, error) {
	for i := range reservations {
		res := &reservations[i]
		if sign < 0 {
			res.Reserved = 0
		}
		p, ok := f.products[res.ProductID]
		if !ok {
			if sign < 0 {
				return nil, fmt.Errorf("product %s: %w", res.ProductID, repository.ErrInsufficientStock)
			}
			continue
		}
		if !p.TrackInventory {
			continue
		}
		for i := range p.Variants {
			v := &p.Variants[i]
			if v.ID != res.VariantID {
				continue
			}
			if sign < 0 {
				if !(res.AllowBackorder || p.AllowBackorder) && v.Stock < res.Quantity {
					return nil, fmt.Errorf("variant %s: %w", v.ID, repository.ErrInsufficientStock)
				}
				v.Stock = res.Take(v.Stock)
			} else {
				v.Stock += res.Reserved
			}
		}
	}
	var touched []models.Product
	seen := make(map[string]bool)
	for _, res := range reservations {
		p, ok := f.products[res.ProductID]
		if !ok || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		p.RecomputeTotalStock()
		touched = append(touched, *cloneProduct(p))
	}
	return touched, nil
}

type fakeOrders struct {
	mu       sync.Mutex
	products *fakeProducts
	orders   map[string]*models.Order
	counters map[string]int64
}

func newFakeOrders(products *fakeProducts) *fakeOrders {
	return &fakeOrders{products: products, orders: make(map[string]*models.Order), counters: make(map[string]int64)}
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp
}

func (f *fakeOrders) Create(_ context.Context, o *models.Order, reservations []models.StockReservation, day time.Time) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products.mu.Lock()
	defer f.products.mu.Unlock()

	if o.ClientReference != nil {
		for _, existing := range f.orders {
			if existing.ClientReference != nil && *existing.ClientReference == *o.ClientReference {
				return nil, &pq.Error{Code: "23505", Constraint: "idx_orders_client_reference"}
			}
		}
	}

	// Snapshot so a failed reservation leaves stock untouched.
	snapshot := make(map[string]*models.Product, len(f.products.products))
	for id, p := range f.products.products {
		snapshot[id] = cloneProduct(p)
	}
	touched, err := f.products.adjust(reservations, -1)
	if err != nil {
		f.products.products = snapshot
		return nil, err
	}
	for i := range o.Items {
		o.Items[i].ReservedQuantity = reservations[i].Reserved
	}

	key := models.OrderCounterKey(day)
	f.counters[key]++
	if err := o.AssignNumber(day, f.counters[key]); err != nil {
		return nil, err
	}
	o.CreatedAt = day
	o.UpdatedAt = day
	f.orders[o.ID] = cloneOrder(o)
	return touched, nil
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneOrder(o), nil
}

func (f *fakeOrders) find(match func(*models.Order) bool) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if match(o) {
			return cloneOrder(o), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeOrders) GetByReference(_ context.Context, reference string) (*models.Order, error) {
	return f.find(func(o *models.Order) bool { return o.Payment.Reference == reference })
}

func (f *fakeOrders) GetByClientReference(_ context.Context, customerID, ref string) (*models.Order, error) {
	return f.find(func(o *models.Order) bool {
		return o.CustomerID == customerID && o.ClientReference != nil && *o.ClientReference == ref
	})
}

func (f *fakeOrders) List(_ context.Context, filter *models.OrderFilter) ([]models.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && string(o.Status) != filter.Status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out, len(out), nil
}

func (f *fakeOrders) ListUnpaid(_ context.Context, method models.PaymentMethod, olderThan time.Time, limit int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if o.Status == models.OrderPending && o.Payment.Method == method &&
			(o.Payment.Status == models.PaymentPending || o.Payment.Status == models.PaymentProcessing) &&
			o.CreatedAt.Before(olderThan) {
			out = append(out, *cloneOrder(o))
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeOrders) SetAuthorizationURL(_ context.Context, id, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		o.Payment.AuthorizationURL = &url
	}
	return nil
}

func unpaid(p models.Payment) bool {
	return p.Status == models.PaymentPending || p.Status == models.PaymentProcessing
}

func (f *fakeOrders) CompletePayment(_ context.Context, reference, transactionID string, paidAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.Payment.Reference != reference || !unpaid(o.Payment) {
			continue
		}
		o.Payment.Status = models.PaymentCompleted
		o.Payment.TransactionID = &transactionID
		o.Payment.PaidAt = &paidAt
		if o.Status == models.OrderPending {
			o.Status = models.OrderProcessing
		}
		return true, nil
	}
	return false, nil
}

func (f *fakeOrders) MarkPaymentProcessing(_ context.Context, reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.Payment.Reference == reference && o.Payment.Status == models.PaymentPending {
			o.Payment.Status = models.PaymentProcessing
		}
	}
	return nil
}

func (f *fakeOrders) Cancel(_ context.Context, id string, from []models.OrderStatus, reason string, unpaidOnly bool) (bool, []models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return false, nil, nil
	}
	allowed := false
	for _, s := range from {
		if o.Status == s {
			allowed = true
		}
	}
	if !allowed || (unpaidOnly && !unpaid(o.Payment)) {
		return false, nil, nil
	}

	now := time.Now()
	o.Status = models.OrderCancelled
	o.CancelledAt = &now
	o.CancelReason = &reason
	if unpaid(o.Payment) {
		o.Payment.Status = models.PaymentFailed
	}

	f.products.mu.Lock()
	defer f.products.mu.Unlock()
	restocked, err := f.products.adjust(o.Reservations(), 1)
	return true, restocked, err
}

func (f *fakeOrders) UpdateStatus(_ context.Context, o *models.Order, from models.OrderStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.orders[o.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	f.orders[o.ID] = cloneOrder(o)
	return true, nil
}

func (f *fakeOrders) HasDeliveredOrderWithProduct(_ context.Context, customerID, productID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.CustomerID == customerID && o.Status == models.OrderDelivered && o.ContainsProduct(productID) {
			return true, nil
		}
	}
	return false, nil
}

type fakeReviews struct {
	mu       sync.Mutex
	products *fakeProducts
	reviews  map[string]*models.Review
	votes    map[string]map[string]models.VoteState
}

func newFakeReviews(products *fakeProducts) *fakeReviews {
	return &fakeReviews{
		products: products,
		reviews:  make(map[string]*models.Review),
		votes:    make(map[string]map[string]models.VoteState),
	}
}

// rerate recomputes the product rating the way the repository does. The
// caller holds mu.
func (f *fakeReviews) rerate(productID string) (models.RatingSummary, error) {
	var ratings []int
	for _, rv := range f.reviews {
		if rv.ProductID == productID && rv.IsPublished {
			ratings = append(ratings, rv.Rating)
		}
	}
	summary := models.ComputeRating(ratings)
	return summary, f.products.setRating(productID, summary)
}

func (f *fakeReviews) Create(_ context.Context, rv *models.Review) (models.RatingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.reviews {
		if other.ProductID == rv.ProductID && other.CustomerID == rv.CustomerID {
			return models.RatingSummary{}, &pq.Error{Code: "23505", Constraint: "reviews_product_customer_key"}
		}
	}
	cp := *rv
	f.reviews[rv.ID] = &cp
	return f.rerate(rv.ProductID)
}

func (f *fakeReviews) GetByID(_ context.Context, id string) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rv, ok := f.reviews[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *rv
	return &cp, nil
}

func (f *fakeReviews) Update(_ context.Context, rv *models.Review) (models.RatingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rv
	f.reviews[rv.ID] = &cp
	return f.rerate(rv.ProductID)
}

func (f *fakeReviews) SetPublished(_ context.Context, productID, id string, published bool) (bool, models.RatingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rv, ok := f.reviews[id]
	if !ok || rv.ProductID != productID {
		return false, models.RatingSummary{}, nil
	}
	rv.IsPublished = published
	summary, err := f.rerate(productID)
	return true, summary, err
}

func (f *fakeReviews) Delete(_ context.Context, productID, id string) (bool, models.RatingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rv, ok := f.reviews[id]
	if !ok || rv.ProductID != productID {
		return false, models.RatingSummary{}, nil
	}
	delete(f.reviews, id)
	delete(f.votes, id)
	summary, err := f.rerate(productID)
	return true, summary, err
}

func (f *fakeReviews) List(_ context.Context, filter *models.ReviewFilter) ([]models.Review, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Review
	for _, rv := range f.reviews {
		if filter.ProductID != "" && rv.ProductID != filter.ProductID {
			continue
		}
		if filter.CustomerID != "" && rv.CustomerID != filter.CustomerID {
			continue
		}
		if filter.PublishedOnly && !rv.IsPublished {
			continue
		}
		out = append(out, *rv)
	}
	return out, len(out), nil
}

func (f *fakeReviews) Vote(_ context.Context, reviewID, userID string, action models.VoteAction) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rv, ok := f.reviews[reviewID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if f.votes[reviewID] == nil {
		f.votes[reviewID] = make(map[string]models.VoteState)
	}
	next, delta, err := models.ApplyVote(f.votes[reviewID][userID], action)
	if err != nil {
		return nil, err
	}
	if next == models.VoteNone {
		delete(f.votes[reviewID], userID)
	} else {
		f.votes[reviewID][userID] = next
	}
	rv.HelpfulCount = max(rv.HelpfulCount+delta.Helpful, 0)
	rv.NotHelpfulCount = max(rv.NotHelpfulCount+delta.NotHelpful, 0)

	cp := *rv
	cp.HelpfulVotes, cp.NotHelpfulVotes = nil, nil
	for voter, state := range f.votes[reviewID] {
		if state == models.VoteHelpful {
			cp.HelpfulVotes = append(cp.HelpfulVotes, voter)
		} else {
			cp.NotHelpfulVotes = append(cp.NotHelpfulVotes, voter)
		}
	}
	return &cp, nil
}

type fakeWishlists struct {
	mu    sync.Mutex
	items map[string][]string
}

func newFakeWishlists() *fakeWishlists {
	return &fakeWishlists{items: make(map[string][]string)}
}

func (f *fakeWishlists) Get(_ context.Context, userID string) (*models.Wishlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &models.Wishlist{UserID: userID, Items: []models.WishlistItem{}}
	for _, id := range f.items[userID] {
		w.Items = append(w.Items, models.WishlistItem{ProductID: id})
	}
	return w, nil
}

func (f *fakeWishlists) AddItem(_ context.Context, userID, productID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.items[userID] {
		if id == productID {
			return false, nil
		}
	}
	f.items[userID] = append(f.items[userID], productID)
	return true, nil
}

func (f *fakeWishlists) RemoveItem(_ context.Context, userID, productID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.items[userID]
	for i, id := range list {
		if id == productID {
			f.items[userID] = append(list[:i], list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWishlists) Clear(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, userID)
	return nil
}

func (f *fakeWishlists) Contains(_ context.Context, userID, productID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.items[userID] {
		if id == productID {
			return true, nil
		}
	}
	return false, nil
}

type fakeNotifications struct {
	mu    sync.Mutex
	items []models.Notification
}

func (f *fakeNotifications) Create(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.CreatedAt = time.Now()
	f.items = append(f.items, *n)
	return nil
}

func (f *fakeNotifications) List(_ context.Context, recipientID string, unreadOnly bool, page, limit int) ([]models.Notification, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.items {
		if n.RecipientID == recipientID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (f *fakeNotifications) UnreadCount(_ context.Context, recipientID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, it := range f.items {
		if it.RecipientID == recipientID && !it.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id, recipientID string) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id && f.items[i].RecipientID == recipientID {
			now := time.Now()
			f.items[i].IsRead = true
			f.items[i].ReadAt = &now
			cp := f.items[i]
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeNotifications) MarkAllRead(_ context.Context, recipientID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.items {
		if f.items[i].RecipientID == recipientID && !f.items[i].IsRead {
			f.items[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) Delete(_ context.Context, id, recipientID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id && f.items[i].RecipientID == recipientID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotifications) ofType(t models.NotificationType) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.items {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

type fakeSettings struct {
	mu     sync.Mutex
	stored *models.Settings
}

func (f *fakeSettings) Bootstrap(_ context.Context, defaults models.Settings) (*models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stored == nil {
		f.stored = &defaults
	}
	cp := *f.stored
	return &cp, nil
}

func (f *fakeSettings) Get(_ context.Context) (*models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stored == nil {
		return nil, sql.ErrNoRows
	}
	cp := *f.stored
	return &cp, nil
}

func (f *fakeSettings) Save(_ context.Context, s *models.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.stored = &cp
	return nil
}

// fakeGateway answers Paystack calls from fixed results.
type fakeGateway struct {
	mu         sync.Mutex
	initErr    error
	verify     map[string]*paystack.Transaction
	verifyErr  error
	initCalls  []paystack.InitializeRequest
	verifyHits int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{verify: make(map[string]*paystack.Transaction)}
}

func (g *fakeGateway) InitializeTransaction(_ context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalls = append(g.initCalls, req)
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &paystack.InitializeResponse{
		AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
		AccessCode:       "ac_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *fakeGateway) VerifyTransaction(_ context.Context, reference string) (*paystack.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyHits++
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	trx, ok := g.verify[reference]
	if !ok {
		return &paystack.Transaction{Reference: reference, Status: paystack.StatusAbandoned}, nil
	}
	return trx, nil
}

// recordingMailer keeps sent mail for assertions.
type recordingMailer struct {
	mu     sync.Mutex
	sent   []string
	bodies []string
}

func (m *recordingMailer) Send(_ context.Context, to []string, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, subject)
	m.bodies = append(m.bodies, body)
	return nil
}
