package domain

import "context"

type ProductRepo interface {
	Create(ctx context.Context, p *Product) error
	Save(ctx context.Context, p *Product) error
	FindByID(ctx context.Context, id uint) (*Product, error)
	List(ctx context.Context, f ProductFilter) ([]Product, int64, error)
	ListDiscounted(ctx context.Context, limit int) ([]Product, error)
	Delete(ctx context.Context, id uint) error
}

// FileStorage guarda bytes de imágenes bajo una clave relativa.
type FileStorage interface {
	SaveImage(ctx context.Context, key string, data []byte) (string, error)
	Remove(ctx context.Context, key string) error
}
