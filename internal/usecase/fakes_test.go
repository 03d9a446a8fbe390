package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/phenrril/naturalhome/internal/domain"
)

// fakeRepo implementa domain.ProductRepo en memoria.
type fakeRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]domain.Product

	createErr error
	saveErr   error
	deleteErr error
	findErr   error

	listFilters []domain.ProductFilter
	deleted     []uint
	saves       int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[uint]domain.Product{}}
}

func (r *fakeRepo) Create(ctx context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	p.ID = r.nextID
	r.rows[p.ID] = clone(*p)
	return nil
}

func (r *fakeRepo) Save(ctx context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.saveErr != nil {
		return r.saveErr
	}
	r.rows[p.ID] = clone(*p)
	return nil
}

func (r *fakeRepo) FindByID(ctx context.Context, id uint) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	p, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := clone(p)
	return &c, nil
}

func (r *fakeRepo) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listFilters = append(r.listFilters, f)
	var all []domain.Product
	for _, p := range r.rows {
		q := strings.ToLower(f.Query)
		match := q == "" || strings.Contains(strings.ToLower(p.Title), q) ||
			(f.Scope == domain.ScopeAdmin && strings.Contains(string(p.Category), q))
		if match && (f.Category == "" || p.Category == f.Category) {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	start := (f.Page - 1) * f.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + f.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *fakeRepo) ListDiscounted(ctx context.Context, limit int) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Product
	for _, p := range r.rows {
		if p.DiscountActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.deleted = append(r.deleted, id)
	delete(r.rows, id)
	return nil
}

func clone(p domain.Product) domain.Product {
	p.AdditionalImages = append(domain.ImageList{}, p.AdditionalImages...)
	return p
}

// memStorage implementa domain.FileStorage en memoria.
type memStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	order   []string
	removed []string

	failAfter int // falla a partir de la escritura n (1-based); 0 = nunca
	writes    int
}

var errDiskFull = errors.New("disco lleno")

func newMemStorage() *memStorage {
	return &memStorage{files: map[string][]byte{}}
}

func (s *memStorage) SaveImage(ctx context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failAfter > 0 && s.writes >= s.failAfter {
		return "", errDiskFull
	}
	s.files[key] = append([]byte(nil), data...)
	s.order = append(s.order, key)
	return key, nil
}

func (s *memStorage) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, key)
	delete(s.files, key)
	return nil
}
