package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberpay/internal/model"
)

func TestFindByID(t *testing.T) {
	product := FindByID(3)
	require.NotNil(t, product)
	assert.Equal(t, "标准点数包", product.Name)
	assert.Equal(t, model.ProductTypePoints, product.Type)
	assert.True(t, product.Price.Equal(decimal.RequireFromString("50.00")))
	assert.Equal(t, int64(500), product.Points)

	assert.Nil(t, FindByID(999))
}

func TestPointsProductsHavePositivePoints(t *testing.T) {
	for _, p := range Products {
		if p.Type != model.ProductTypePoints {
			continue
		}
		assert.Greater(t, p.Points, int64(0), "product %d", p.ID)
		assert.True(t, p.Price.GreaterThan(decimal.Zero), "product %d", p.ID)
	}
}
