// Package repotest provides in-memory repositories for service tests.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/model"
	"storefront/internal/repository"
)

// Store shared in-memory state behind every repository it hands out.
// A single mutex serializes all operations, which gives PlaceOrder the same
// all-or-nothing visibility a database transaction would.
type Store struct {
	mu sync.Mutex

	products      map[uint64]*model.Product
	favorites     map[uint64]*model.Favorite
	notifications map[uint64]*model.Notification
	orders        map[uint64]*model.Order
	users         map[uint64]*model.User
	nextID        uint64

	// NotificationWriteErr, when set, fails every notification insert
	NotificationWriteErr error
	// FavoriteReadErr, when set, fails favorite lookups
	FavoriteReadErr error

	now func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var tick int64
	return &Store{
		products:      make(map[uint64]*model.Product),
		favorites:     make(map[uint64]*model.Favorite),
		notifications: make(map[uint64]*model.Notification),
		orders:        make(map[uint64]*model.Order),
		users:         make(map[uint64]*model.User),
		// strictly increasing so newest-first ordering is deterministic
		now: func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		},
	}
}

func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

// AddProduct seeds a product and returns it
func (s *Store) AddProduct(name, price string, stock int) *model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &model.Product{
		ID:        s.id(),
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		CreatedAt: s.now(),
	}
	p.UpdatedAt = p.CreatedAt
	s.products[p.ID] = p
	cp := *p
	return &cp
}

// SetPrice changes a stored price without going through the catalog
func (s *Store) SetPrice(productID uint64, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok {
		p.ApplyPrice(decimal.RequireFromString(price))
	}
}

// Stock returns the stored stock of a product
func (s *Store) Stock(productID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok {
		return p.Stock
	}
	return -1
}

// Notifications returns every stored notification in insert order
func (s *Store) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OrderCount number of stored orders
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) Products() repository.ProductRepository { return &productRepo{s} }
func (s *Store) Favorites() repository.FavoriteRepository { return &favoriteRepo{s} }
func (s *Store) NotificationsRepo() repository.NotificationRepository { return &notificationRepo{s} }
func (s *Store) Orders() repository.OrderRepository { return &orderRepo{s} }
func (s *Store) Users() repository.UserRepository { return &userRepo{s} }

type productRepo struct{ s *Store }

func (r *productRepo) Create(_ context.Context, product *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	product.ID = r.s.id()
	product.CreatedAt = r.s.now()
	product.UpdatedAt = product.CreatedAt
	cp := *product
	r.s.products[product.ID] = &cp
	return nil
}

func (r *productRepo) GetByID(_ context.Context, id uint64) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *productRepo) GetByIDs(_ context.Context, ids []uint64) (map[uint64]*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[uint64]*model.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *productRepo) sorted() []*model.Product {
	list := make([]*model.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		cp := *p
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func (r *productRepo) First(_ context.Context) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := r.sorted()
	if len(list) == 0 {
		return nil, repository.ErrProductNotFound
	}
	return list[0], nil
}

func (r *productRepo) List(_ context.Context, filter repository.ProductFilter, page, pageSize int) ([]*model.Product, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(filter.Query))
	list := make([]*model.Product, 0, len(r.s.products))
	for _, p := range r.sorted() {
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) &&
			(p.Description == nil || !strings.Contains(strings.ToLower(*p.Description), q)) {
			continue
		}
		if filter.Category != "" && (p.Category == nil || *p.Category != filter.Category) {
			continue
		}
		if filter.MinPrice != nil && p.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		list = append(list, p)
	}

	switch filter.Sort {
	case repository.SortPriceAsc:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Price.LessThan(list[j].Price) })
	case repository.SortPriceDesc:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Price.GreaterThan(list[j].Price) })
	case repository.SortNewest:
		sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	}

	start := (page - 1) * pageSize
	if start >= len(list) {
		return []*model.Product{}, int64(len(list)), nil
	}
	end := start + pageSize
	if end > len(list) {
		end = len(list)
	}
	return list[start:end], int64(len(list)), nil
}

// Update runs mutate against the stored row under the store lock, the same
// isolation the row lock gives the SQL repository
func (r *productRepo) Update(_ context.Context, id uint64, mutate repository.ProductMutation) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}

	cp := *stored
	columns, err := mutate(&cp)
	if err != nil {
		return nil, err
	}
	if len(columns) > 0 {
		cp.UpdatedAt = r.s.now()
		*stored = cp
	}
	out := *stored
	return &out, nil
}

func (r *productRepo) Delete(_ context.Context, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(r.s.products, id)
	for fid, f := range r.s.favorites {
		if f.ProductID == id {
			delete(r.s.favorites, fid)
		}
	}
	return nil
}

func (r *productRepo) ListBestSellers(_ context.Context, limit int) ([]*model.BestSeller, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[uint64]int64)
	for _, o := range r.s.orders {
		for _, l := range o.Lines {
			counts[l.ProductID]++
		}
	}
	list := make([]*model.BestSeller, 0, len(r.s.products))
	for _, p := range r.sorted() {
		list = append(list, &model.BestSeller{Product: *p, LineCount: counts[p.ID]})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].LineCount > list[j].LineCount })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

type favoriteRepo struct{ s *Store }

func (r *favoriteRepo) find(userID, productID uint64) *model.Favorite {
	for _, f := range r.s.favorites {
		if f.UserID == userID && f.ProductID == productID {
			return f
		}
	}
	return nil
}

func (r *favoriteRepo) Create(_ context.Context, favorite *model.Favorite) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.find(favorite.UserID, favorite.ProductID) != nil {
		return repository.ErrDuplicateFavorite
	}
	favorite.ID = r.s.id()
	favorite.CreatedAt = r.s.now()
	cp := *favorite
	r.s.favorites[favorite.ID] = &cp
	return nil
}

func (r *favoriteRepo) Get(_ context.Context, userID, productID uint64) (*model.Favorite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FavoriteReadErr != nil {
		return nil, r.s.FavoriteReadErr
	}
	f := r.find(userID, productID)
	if f == nil {
		return nil, repository.ErrFavoriteNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *favoriteRepo) Exists(_ context.Context, userID, productID uint64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FavoriteReadErr != nil {
		return false, r.s.FavoriteReadErr
	}
	return r.find(userID, productID) != nil, nil
}

func (r *favoriteRepo) Delete(_ context.Context, userID, productID uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f := r.find(userID, productID)
	if f == nil {
		return repository.ErrFavoriteNotFound
	}
	delete(r.s.favorites, f.ID)
	return nil
}

func (r *favoriteRepo) list(match func(*model.Favorite) bool, less func(a, b *model.Favorite) bool, limit int) []*model.Favorite {
	var out []*model.Favorite
	for _, f := range r.s.favorites {
		if match(f) {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *favoriteRepo) ListByUser(_ context.Context, userID uint64, limit int) ([]*model.Favorite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FavoriteReadErr != nil {
		return nil, r.s.FavoriteReadErr
	}
	return r.list(
		func(f *model.Favorite) bool { return f.UserID == userID },
		func(a, b *model.Favorite) bool { return a.ID > b.ID },
		limit,
	), nil
}

func (r *favoriteRepo) ListByProduct(_ context.Context, productID, afterID uint64, limit int) ([]*model.Favorite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FavoriteReadErr != nil {
		return nil, r.s.FavoriteReadErr
	}
	return r.list(
		func(f *model.Favorite) bool { return f.ProductID == productID && f.ID > afterID },
		func(a, b *model.Favorite) bool { return a.ID < b.ID },
		limit,
	), nil
}

type notificationRepo struct{ s *Store }

func (r *notificationRepo) duplicate(n *model.Notification) bool {
	if !n.NotifiedPrice.Valid {
		return false
	}
	for _, existing := range r.s.notifications {
		if existing.UserID == n.UserID && existing.ProductID == n.ProductID &&
			existing.NotifiedPrice.Valid && existing.NotifiedPrice.Decimal.Equal(n.NotifiedPrice.Decimal) {
			return true
		}
	}
	return false
}

func (r *notificationRepo) insert(n *model.Notification) {
	n.ID = r.s.id()
	n.CreatedAt = r.s.now()
	cp := *n
	r.s.notifications[n.ID] = &cp
}

func (r *notificationRepo) Create(_ context.Context, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.NotificationWriteErr != nil {
		return r.s.NotificationWriteErr
	}
	r.insert(n)
	return nil
}

func (r *notificationRepo) CreateBatch(_ context.Context, notifications []*model.Notification) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.NotificationWriteErr != nil {
		return 0, r.s.NotificationWriteErr
	}
	var created int64
	for _, n := range notifications {
		if r.duplicate(n) {
			continue
		}
		r.insert(n)
		created++
	}
	return created, nil
}

func (r *notificationRepo) lowest(match func(*model.Notification) (uint64, bool)) map[uint64]decimal.Decimal {
	out := make(map[uint64]decimal.Decimal)
	for _, n := range r.s.notifications {
		if !n.NotifiedPrice.Valid {
			continue
		}
		key, ok := match(n)
		if !ok {
			continue
		}
		if cur, seen := out[key]; !seen || n.NotifiedPrice.Decimal.LessThan(cur) {
			out[key] = n.NotifiedPrice.Decimal
		}
	}
	return out
}

func contains(ids []uint64, id uint64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (r *notificationRepo) LowestNotifiedByUser(_ context.Context, userID uint64, productIDs []uint64) (map[uint64]decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.lowest(func(n *model.Notification) (uint64, bool) {
		return n.ProductID, n.UserID == userID && contains(productIDs, n.ProductID)
	}), nil
}

func (r *notificationRepo) LowestNotifiedByProduct(_ context.Context, productID uint64, userIDs []uint64) (map[uint64]decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.lowest(func(n *model.Notification) (uint64, bool) {
		return n.UserID, n.ProductID == productID && contains(userIDs, n.UserID)
	}), nil
}

func (r *notificationRepo) ListUnread(_ context.Context, userID uint64) ([]*model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.IsRead {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *notificationRepo) MarkRead(_ context.Context, id, userID uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotificationNotFound
	}
	n.IsRead = true
	return nil
}

func (r *notificationRepo) MarkAllRead(_ context.Context, userID uint64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (r *notificationRepo) DeleteAll(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := int64(len(r.s.notifications))
	r.s.notifications = make(map[uint64]*model.Notification)
	return count, nil
}

type orderRepo struct{ s *Store }

func (r *orderRepo) PlaceOrder(_ context.Context, order *model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// check everything before touching stock so a failure leaves no trace
	need := make(map[uint64]int)
	for _, l := range order.Lines {
		need[l.ProductID] += l.Quantity
	}
	ids := make([]uint64, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		p, ok := r.s.products[id]
		if !ok {
			return &repository.MissingProductError{ProductID: id}
		}
		if p.Stock < need[id] {
			return &repository.InsufficientStockError{
				ProductID: id, Name: p.Name, Requested: need[id], Available: p.Stock,
			}
		}
	}
	for _, id := range ids {
		r.s.products[id].Stock -= need[id]
	}

	order.ID = r.s.id()
	order.CreatedAt = r.s.now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Lines {
		order.Lines[i].ID = r.s.id()
		order.Lines[i].OrderID = order.ID
		order.Lines[i].ProductName = r.s.products[order.Lines[i].ProductID].Name
	}
	cp := *order
	cp.Lines = append([]model.OrderLine(nil), order.Lines...)
	r.s.orders[order.ID] = &cp
	return nil
}

func copyOrder(o *model.Order) *model.Order {
	cp := *o
	cp.Lines = append([]model.OrderLine(nil), o.Lines...)
	return &cp
}

func (r *orderRepo) GetByID(_ context.Context, id uint64) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (r *orderRepo) sorted(match func(*model.Order) bool) []*model.Order {
	var out []*model.Order
	for _, o := range r.s.orders {
		if match(o) {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *orderRepo) ListByUser(_ context.Context, userID uint64) ([]*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.sorted(func(o *model.Order) bool { return o.UserID == userID }), nil
}

func (r *orderRepo) List(_ context.Context, page, pageSize int) ([]*model.Order, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.sorted(func(*model.Order) bool { return true })
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []*model.Order{}, int64(len(all)), nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (r *orderRepo) UpdateStatus(_ context.Context, order *model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[order.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = order.Status
	o.DeliveredAt = order.DeliveredAt
	return nil
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.ID = r.s.id()
	user.CreatedAt = r.s.now()
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id uint64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *userRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *userRepo) UpdateLastLogin(_ context.Context, userID uint64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[userID]; ok {
		t := at
		u.LastLoginAt = &t
	}
	return nil
}
