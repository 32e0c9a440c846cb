package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/omc-bdc-price-service/app/dto"
	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/repository"
	"github.com/samber/lo"
)

// ProductFlow manages the product catalog
type ProductFlow interface {
	ListProducts(ctx context.Context) ([]dto.ProductDTO, error)
	GetProduct(ctx context.Context, id uint) (*dto.ProductDTO, error)
	CreateProduct(ctx context.Context, req *dto.CreateProductRequest) (*dto.ProductDTO, error)
	DeleteProduct(ctx context.Context, id uint) error
	RestoreProduct(ctx context.Context, id uint) (*dto.ProductDTO, error)
}

type ProductFlowImpl struct {
	productRepo repository.ProductRepository
}

func NewProductFlow(productRepo repository.ProductRepository) ProductFlow {
	return &ProductFlowImpl{productRepo: productRepo}
}

func (f *ProductFlowImpl) ListProducts(ctx context.Context) ([]dto.ProductDTO, error) {
	products, err := f.productRepo.ByFilter(ctx, models.ProductFilter{}, "name ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("PRODUCT_LIST_FAILED", "Failed to list products", err)
	}
	return lo.Map(products, func(p *models.Product, _ int) dto.ProductDTO { return ToProductDTO(*p) }), nil
}

func (f *ProductFlowImpl) GetProduct(ctx context.Context, id uint) (*dto.ProductDTO, error) {
	product, err := f.productRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("PRODUCT_FETCH_FAILED", "Failed to fetch product", err)
	}
	if product == nil {
		return nil, NewBusinessError("PRODUCT_NOT_FOUND", "Product not found", ErrProductNotFound)
	}
	out := ToProductDTO(*product)
	return &out, nil
}

// CreateProduct adds a product; a soft-deleted product with the same name is restored instead
func (f *ProductFlowImpl) CreateProduct(ctx context.Context, req *dto.CreateProductRequest) (*dto.ProductDTO, error) {
	name := strings.TrimSpace(req.Name)
	existing, err := f.productRepo.ByFilter(ctx, models.ProductFilter{Name: &name, IncludeDeleted: true}, "", 1, 0)
	if err != nil {
		return nil, NewBusinessError("PRODUCT_FETCH_FAILED", "Failed to fetch product", err)
	}
	if len(existing) > 0 {
		if !existing[0].DeletedAt.Valid {
			return nil, NewBusinessError("PRODUCT_EXISTS", "Product already exists", ErrProductNameTaken)
		}
		return f.RestoreProduct(ctx, existing[0].ID)
	}

	product := &models.Product{Name: name}
	if err := f.productRepo.Save(ctx, product); err != nil {
		return nil, NewBusinessError("PRODUCT_SAVE_FAILED", "Failed to save product", err)
	}
	out := ToProductDTO(*product)
	return &out, nil
}

func (f *ProductFlowImpl) DeleteProduct(ctx context.Context, id uint) error {
	if _, err := f.GetProduct(ctx, id); err != nil {
		return err
	}
	if err := f.productRepo.SoftDelete(ctx, id); err != nil {
		return NewBusinessError("PRODUCT_DELETE_FAILED", "Failed to delete product", err)
	}
	return nil
}

func (f *ProductFlowImpl) RestoreProduct(ctx context.Context, id uint) (*dto.ProductDTO, error) {
	if err := f.productRepo.Restore(ctx, id); err != nil {
		return nil, NewBusinessError("PRODUCT_NOT_FOUND", "Deleted product not found", ErrProductNotFound)
	}
	return f.GetProduct(ctx, id)
}
