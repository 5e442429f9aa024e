package repo

import (
	"context"
	"engage/entity"
	"engage/pkg/goutil"
)

type Product struct {
	ID    *uint64
	Name  *string
	Price *float64
	Image *string
}

func (m *Product) TableName() string {
	return "product_tab"
}

type ProductRepo interface {
	GetManyByIDs(ctx context.Context, productIDs []uint64) ([]*entity.Product, error)
}

type productRepo struct {
	baseRepo BaseRepo
}

func NewProductRepo(_ context.Context, baseRepo BaseRepo) ProductRepo {
	return &productRepo{baseRepo: baseRepo}
}

func (r *productRepo) GetManyByIDs(ctx context.Context, productIDs []uint64) ([]*entity.Product, error) {
	productIDs = goutil.UniqUint64(productIDs)
	if len(productIDs) == 0 {
		return nil, nil
	}

	mProducts := make([]*Product, 0)
	if err := r.baseRepo.Find(ctx, new(Product), &mProducts, &Filter{
		Conditions: []*Condition{
			{
				Field: "id",
				Op:    OpIn,
				Value: productIDs,
			},
		},
	}); err != nil {
		return nil, err
	}

	products := make([]*entity.Product, len(mProducts))
	for i, m := range mProducts {
		products[i] = &entity.Product{
			ID:    m.ID,
			Name:  m.Name,
			Price: m.Price,
			Image: m.Image,
		}
	}

	return products, nil
}
