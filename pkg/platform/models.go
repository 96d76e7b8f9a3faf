package platform

// Customer is the guest customer attached to a cart.
type Customer struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
}

// CreateProductRequest describes one product to create.
type CreateProductRequest struct {
	StoreID   string `json:"store_id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Sku       string `json:"sku" validate:"required"`
	IsInStock bool   `json:"is_in_stock"`
}

// CreateProductResult pairs a request with the created product id.
type CreateProductResult struct {
	Request   CreateProductRequest `json:"request"`
	ProductID string               `json:"product_id"`
}

// DeleteProductRequest describes one product to delete.
type DeleteProductRequest struct {
	StoreID        string `json:"store_id" validate:"required"`
	CategoryID     int    `json:"category_id"`
	ProductID      string `json:"product_id" validate:"required"`
	IdentifierType string `json:"identifier_type" validate:"omitempty,oneof=id sku"`
}

// DeleteProductResult pairs a request with the platform's verdict.
type DeleteProductResult struct {
	Request DeleteProductRequest `json:"request"`
	Deleted bool                 `json:"deleted"`
}

// CreateOrderRequest describes one guest order to place.
type CreateOrderRequest struct {
	StoreID    string   `json:"store_id" validate:"required"`
	Customer   Customer `json:"customer"`
	ProductIDs []string `json:"product_ids" validate:"required,min=1,dive,required"`
}

// CreateOrderResult pairs a request with the placed order id.
type CreateOrderResult struct {
	Request CreateOrderRequest `json:"request"`
	OrderID string             `json:"order_id"`
}
