package catalog

import (
	"github.com/shopspring/decimal"

	"memberpay/internal/model"
)

// Product 可购买套餐
// 积分类套餐的 points 是固定配置值，不由金额换算得出
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Points      int64           `json:"points,omitempty"`
	Duration    int             `json:"duration,omitempty"` // 时长套餐有效天数
}

// Products 套餐目录（静态配置）
var Products = []Product{
	{
		ID:          1,
		Name:        "基础会员",
		Type:        model.ProductTypeMember,
		Price:       decimal.RequireFromString("99.00"),
		Description: "基础会员服务，有效期1个月",
		Duration:    30,
		Points:      1000,
	},
	{
		ID:          2,
		Name:        "高级会员",
		Type:        model.ProductTypeMember,
		Price:       decimal.RequireFromString("199.00"),
		Description: "高级会员服务，有效期3个月",
		Duration:    90,
		Points:      3000,
	},
	{
		ID:          3,
		Name:        "标准点数包",
		Type:        model.ProductTypePoints,
		Price:       decimal.RequireFromString("50.00"),
		Description: "500点数充值包",
		Points:      500,
	},
	{
		ID:          5,
		Name:        "小额体验包",
		Type:        model.ProductTypePoints,
		Price:       decimal.RequireFromString("5.00"),
		Description: "10点数体验包",
		Points:      10,
	},
	{
		ID:          6,
		Name:        "15日套餐",
		Type:        model.ProductTypeSubscription,
		Price:       decimal.RequireFromString("15.00"),
		Description: "时长套餐：15天",
		Duration:    15,
	},
	{
		ID:          7,
		Name:        "月度套餐",
		Type:        model.ProductTypeSubscription,
		Price:       decimal.RequireFromString("25.00"),
		Description: "时长套餐：30天",
		Duration:    30,
	},
	{
		ID:          8,
		Name:        "季度套餐",
		Type:        model.ProductTypeSubscription,
		Price:       decimal.RequireFromString("50.00"),
		Description: "时长套餐：90天",
		Duration:    90,
	},
	{
		ID:          9,
		Name:        "半年套餐",
		Type:        model.ProductTypeSubscription,
		Price:       decimal.RequireFromString("80.00"),
		Description: "时长套餐：180天",
		Duration:    180,
	},
	{
		ID:          10,
		Name:        "年度套餐",
		Type:        model.ProductTypeSubscription,
		Price:       decimal.RequireFromString("120.00"),
		Description: "时长套餐：365天",
		Duration:    365,
	},
}

// FindByID 按ID查找套餐，未找到返回 nil
func FindByID(id int64) *Product {
	for i := range Products {
		if Products[i].ID == id {
			return &Products[i]
		}
	}
	return nil
}
