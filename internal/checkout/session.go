// Package checkout holds the in-progress side of order taking: the cart, the
// optional customer capture step and the submission state machine.
package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yourbite/pos-api/internal/database"
)

type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingCustomerInfo State = "awaiting_customer_info"
	StateSubmitting           State = "submitting"
	StateSucceeded            State = "succeeded"
	StateFailed               State = "failed"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrSubmitInProgress = errors.New("order submission in progress")
	ErrNotCapturing     = errors.New("customer details are not being captured")
	ErrDishUnavailable  = errors.New("dish is not available")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrLineNotFound     = errors.New("cart line not found")
)

// CustomerInfo is the optional customer data entered before submission.
type CustomerInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Submission is what a session hands to the Submitter. OrderID is stable
// across retries of the same submission.
type Submission struct {
	OrderID  string
	Lines    []Line
	Customer CustomerInfo
}

// Submitter persists a submission as an order.
type Submitter interface {
	SubmitCart(ctx context.Context, s Submission) (database.Order, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, s Submission) (database.Order, error)

func (f SubmitterFunc) SubmitCart(ctx context.Context, s Submission) (database.Order, error) {
	return f(ctx, s)
}

// View is a point-in-time copy of a session.
type View struct {
	ID             string          `json:"id"`
	State          State           `json:"state"`
	CartOpen       bool            `json:"cart_open"`
	Lines          []Line          `json:"lines"`
	Total          decimal.Decimal `json:"total"`
	Customer       CustomerInfo    `json:"customer"`
	PendingOrderID string          `json:"pending_order_id,omitempty"`
	LastOrder      *database.Order `json:"-"`
	LastError      string          `json:"last_error,omitempty"`
}

// Session is one till's order in progress. All methods are safe for
// concurrent use.
type Session struct {
	mu             sync.Mutex
	id             string
	cart           Cart
	customer       CustomerInfo
	state          State
	cartOpen       bool
	pendingOrderID string
	lastOrder      *database.Order
	lastErr        error
	lastActive     time.Time
	now            func() time.Time
}

func NewSession(id string) *Session {
	return &Session{id: id, state: StateIdle, now: time.Now, lastActive: time.Now()}
}

func (s *Session) ID() string { return s.id }

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		ID:             s.id,
		State:          s.state,
		CartOpen:       s.cartOpen,
		Lines:          s.cart.Lines(),
		Total:          s.cart.Total(),
		Customer:       s.customer,
		PendingOrderID: s.pendingOrderID,
	}
	if s.lastOrder != nil {
		o := *s.lastOrder
		v.LastOrder = &o
	}
	if s.lastErr != nil {
		v.LastError = s.lastErr.Error()
	}
	return v
}

// LastActive is the time of the last call that touched the session.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) activity() (State, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.lastActive
}

func (s *Session) touchLocked() {
	s.lastActive = s.now()
}

// AddDish adds d to the cart and opens the cart panel.
func (s *Session) AddDish(d database.Dish) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	if s.state == StateSubmitting {
		return s.viewLocked(), ErrSubmitInProgress
	}
	if !s.cart.Add(d) {
		return s.viewLocked(), ErrDishUnavailable
	}
	s.cartOpen = true
	return s.viewLocked(), nil
}

func (s *Session) UpdateQuantity(i int, qty int32) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	if s.state == StateSubmitting {
		return s.viewLocked(), ErrSubmitInProgress
	}
	if qty < 1 {
		return s.viewLocked(), ErrInvalidQuantity
	}
	if !s.cart.UpdateQuantity(i, qty) {
		return s.viewLocked(), ErrLineNotFound
	}
	return s.viewLocked(), nil
}

func (s *Session) RemoveLine(i int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	if s.state == StateSubmitting {
		return s.viewLocked(), ErrSubmitInProgress
	}
	if !s.cart.Remove(i) {
		return s.viewLocked(), ErrLineNotFound
	}
	return s.viewLocked(), nil
}

// SetCartOpen shows or hides the cart panel.
func (s *Session) SetCartOpen(open bool) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.cartOpen = open
	return s.viewLocked()
}

// PlaceOrder opens customer capture. The cart must not be empty.
func (s *Session) PlaceOrder() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	switch s.state {
	case StateSubmitting:
		return s.viewLocked(), ErrSubmitInProgress
	case StateAwaitingCustomerInfo:
		return s.viewLocked(), nil
	}
	if s.cart.Len() == 0 {
		return s.viewLocked(), ErrEmptyCart
	}
	s.state = StateAwaitingCustomerInfo
	s.lastErr = nil
	return s.viewLocked(), nil
}

// SetCustomer fills the optional customer fields during capture.
func (s *Session) SetCustomer(info CustomerInfo) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	if s.state != StateAwaitingCustomerInfo {
		return s.viewLocked(), ErrNotCapturing
	}
	s.customer = CustomerInfo{
		Name:  strings.TrimSpace(info.Name),
		Phone: strings.TrimSpace(info.Phone),
	}
	return s.viewLocked(), nil
}

// CancelCapture returns to the cart and clears the customer fields.
func (s *Session) CancelCapture() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	if s.state != StateAwaitingCustomerInfo {
		return s.viewLocked(), ErrNotCapturing
	}
	s.state = StateIdle
	s.customer = CustomerInfo{}
	return s.viewLocked(), nil
}

// Confirm submits the cart. Store I/O runs without holding the session lock;
// the Submitting state rejects concurrent confirms and cart edits.
// On success the cart and customer fields are cleared. On failure they are
// kept so the user can retry.
func (s *Session) Confirm(ctx context.Context, sub Submitter) (View, error) {
	s.mu.Lock()
	s.touchLocked()
	if s.state == StateSubmitting {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, ErrSubmitInProgress
	}
	if s.state != StateAwaitingCustomerInfo {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, ErrNotCapturing
	}
	if s.cart.Len() == 0 {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, ErrEmptyCart
	}
	if s.pendingOrderID == "" {
		s.pendingOrderID = uuid.NewString()
	}
	req := Submission{
		OrderID:  s.pendingOrderID,
		Lines:    s.cart.Lines(),
		Customer: s.customer,
	}
	s.state = StateSubmitting
	s.mu.Unlock()

	order, err := sub.SubmitCart(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.pendingOrderID = ""
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
		return s.viewLocked(), err
	}
	s.cart.Clear()
	s.customer = CustomerInfo{}
	s.cartOpen = false
	s.state = StateSucceeded
	s.lastErr = nil
	s.lastOrder = &order
	return s.viewLocked(), nil
}
