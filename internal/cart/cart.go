package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/TenHe10/CruchCount/internal/models"
)

var (
	// ErrInvalidQuantity marks a quantity edit that is not a positive integer.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrInvalidPrice marks a non-positive one-off price for an unknown barcode.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrInvalidBarcode marks an empty barcode.
	ErrInvalidBarcode = errors.New("invalid barcode")
	// ErrEmptyCart is returned by Checkout when no lines are present.
	ErrEmptyCart = errors.New("cart is empty")
)

// Catalog is the narrow lookup surface the cart needs from the product store.
type Catalog interface {
	Get(ctx context.Context, barcode string) (*models.Product, error)
}

// Log interface for logging
type Log interface {
	Info(string, ...zap.Field)
}

const (
	tempNamePrefix    = "TEMP-"
	tempNameSuffixLen = 4
)

// Cart accumulates one session's lines keyed by barcode. Lines keep insertion
// order for display, and totals are always recomputed from the lines rather
// than tracked incrementally. All mutation is serialized by a mutex so an
// HTTP front-end can call in concurrently.
type Cart struct {
	mx      sync.Mutex
	catalog Catalog
	log     Log

	lines map[string]*models.CartLine
	order []string
}

func New(catalog Catalog, log Log) *Cart {
	return &Cart{
		catalog: catalog,
		log:     log,
		lines:   make(map[string]*models.CartLine),
	}
}

// SwapCatalog rebinds the catalog reference. Callers open and validate the
// new store first, so a failed open never reaches this point.
func (c *Cart) SwapCatalog(catalog Catalog) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.catalog = catalog
}

// Add handles one barcode event. A barcode already in the cart has its
// quantity incremented without a catalog re-lookup; name and price stay as
// first snapshotted. An unknown barcode is looked up in the catalog, and on a
// miss the resolver is asked for a one-off price; if it declines, nothing
// changes and both results are nil. The returned line is a copy.
func (c *Cart) Add(ctx context.Context, barcode string, resolve models.PriceResolver) (*models.CartLine, error) {
	if barcode == "" {
		return nil, fmt.Errorf("%w: barcode is empty", ErrInvalidBarcode)
	}

	c.mx.Lock()
	defer c.mx.Unlock()

	if line, ok := c.lines[barcode]; ok {
		line.Quantity++
		return copyLine(line), nil
	}

	product, err := c.catalog.Get(ctx, barcode)
	if err != nil {
		return nil, err
	}

	var line models.CartLine
	if product != nil {
		line = models.CartLine{
			Barcode:  barcode,
			Name:     product.Name,
			Price:    product.Price,
			Quantity: 1,
		}
	} else {
		if resolve == nil {
			return nil, nil
		}
		price, ok := resolve(barcode)
		if !ok {
			return nil, nil
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("%w: one-off price must be greater than zero, got %s", ErrInvalidPrice, price)
		}
		line = models.CartLine{
			Barcode:  barcode,
			Name:     placeholderName(barcode),
			Price:    price,
			Quantity: 1,
		}
		c.log.Info("Temporary product added to cart", zap.String("barcode", barcode), zap.String("name", line.Name))
	}

	c.lines[barcode] = &line
	c.order = append(c.order, barcode)

	return copyLine(&line), nil
}

// SetQuantity sets the quantity of an existing line. A quantity below one is
// rejected with ErrInvalidQuantity and the line is left untouched; this path
// never removes a line. An absent barcode is a no-op returning nil.
func (c *Cart) SetQuantity(barcode string, quantity int64) (*models.CartLine, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be a positive integer, got %d", ErrInvalidQuantity, quantity)
	}

	c.mx.Lock()
	defer c.mx.Unlock()

	line, ok := c.lines[barcode]
	if !ok {
		return nil, nil
	}
	line.Quantity = quantity

	return copyLine(line), nil
}

// Decrement lowers the quantity of a line by one and removes the line when
// the result reaches zero. It returns the remaining line, or nil when the
// line was removed or never present.
func (c *Cart) Decrement(barcode string) *models.CartLine {
	c.mx.Lock()
	defer c.mx.Unlock()

	line, ok := c.lines[barcode]
	if !ok {
		return nil
	}

	line.Quantity--
	if line.Quantity <= 0 {
		c.removeLocked(barcode)
		return nil
	}

	return copyLine(line)
}

// Remove drops the line regardless of quantity.
func (c *Cart) Remove(barcode string) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.removeLocked(barcode)
}

// Clear empties the cart. Operator confirmation is the caller's concern.
func (c *Cart) Clear() {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.clearLocked()
}

// Checkout reports the aggregate totals as a receipt and then unconditionally
// empties the cart. There is no payment integration and the sale is not
// persisted anywhere.
func (c *Cart) Checkout() (*models.Receipt, error) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if len(c.lines) == 0 {
		return nil, ErrEmptyCart
	}

	lines := c.linesLocked()
	quantity, amount := sumLines(lines)

	receipt := &models.Receipt{
		Reference:     uuid.New(),
		TotalQuantity: quantity,
		TotalAmount:   amount,
		Lines:         lines,
		CreatedAt:     time.Now(),
	}

	c.clearLocked()
	c.log.Info("Checkout completed",
		zap.String("reference", receipt.Reference.String()),
		zap.Int64("total_quantity", quantity),
		zap.String("total_amount", amount.String()),
	)

	return receipt, nil
}

// Lines returns copies of all lines in insertion order.
func (c *Cart) Lines() []models.CartLine {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.linesLocked()
}

// Totals recomputes the aggregate quantity and amount from the current lines.
func (c *Cart) Totals() (int64, decimal.Decimal) {
	c.mx.Lock()
	defer c.mx.Unlock()
	return sumLines(c.linesLocked())
}

func (c *Cart) removeLocked(barcode string) {
	if _, ok := c.lines[barcode]; !ok {
		return
	}
	delete(c.lines, barcode)
	for i, b := range c.order {
		if b == barcode {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Cart) clearLocked() {
	c.lines = make(map[string]*models.CartLine)
	c.order = c.order[:0]
}

func (c *Cart) linesLocked() []models.CartLine {
	lines := make([]models.CartLine, 0, len(c.order))
	for _, barcode := range c.order {
		if line, ok := c.lines[barcode]; ok {
			lines = append(lines, *line)
		}
	}
	return lines
}

func sumLines(lines []models.CartLine) (int64, decimal.Decimal) {
	var quantity int64
	amount := decimal.Zero
	for _, line := range lines {
		quantity += line.Quantity
		amount = amount.Add(line.Subtotal())
	}
	return quantity, amount
}

// placeholderName derives a deterministic display name for a barcode that is
// not in the catalog: the trailing characters of the barcode, or the whole
// barcode when it is shorter.
func placeholderName(barcode string) string {
	suffix := barcode
	if len(barcode) > tempNameSuffixLen {
		suffix = barcode[len(barcode)-tempNameSuffixLen:]
	}
	return tempNamePrefix + suffix
}

func copyLine(line *models.CartLine) *models.CartLine {
	cp := *line
	return &cp
}
