package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"
)

// LocalStore is the offline store: everything lives in memory behind one
// writer lock and is written to a JSON snapshot after each change.
//
// Atomic only guarantees that no other writer runs at the same time. Writes
// inside fn are applied as they happen; if fn fails halfway the earlier writes
// stay. Callers validate everything before the first write.
//
// Memory is authoritative while the process runs. A failed snapshot write is
// logged and does not fail the change that triggered it, since that change is
// already visible to readers. Every later write rewrites the whole snapshot,
// and Close reports the error if the snapshot is still behind.
type LocalStore struct {
	mu       sync.Mutex
	path     string
	branches map[string]*localBranch
}

type localBranch struct {
	Products       map[string]*models.Product  `json:"products"`
	Customers      map[string]*models.Customer `json:"customers"`
	Sales          []*models.Sale              `json:"sales"`
	InvoiceCounter int64                       `json:"invoice_counter"`
}

// NewLocalStore opens the snapshot at path. An empty path keeps the store in
// memory only.
func NewLocalStore(path string) (*LocalStore, error) {
	s := &LocalStore{path: path, branches: make(map[string]*localBranch)}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read local snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &s.branches); err != nil {
		return nil, fmt.Errorf("failed to decode local snapshot: %w", err)
	}
	for _, b := range s.branches {
		b.init()
	}
	return s, nil
}

func (b *localBranch) init() {
	if b.Products == nil {
		b.Products = make(map[string]*models.Product)
	}
	if b.Customers == nil {
		b.Customers = make(map[string]*models.Customer)
	}
}

func (s *LocalStore) Transactional() bool { return false }

func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

func (s *LocalStore) Branch(branchID string) Repos {
	return s.repos(branchID, false)
}

func (s *LocalStore) Atomic(ctx context.Context, branchID string, fn func(ctx context.Context, r Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fnErr := fn(ctx, s.repos(branchID, true))
	s.persistOrLog(branchID)
	return fnErr
}

func (s *LocalStore) repos(branchID string, held bool) Repos {
	r := &localRepo{store: s, branchID: branchID, held: held}
	return Repos{
		Products:  (*localProducts)(r),
		Customers: (*localCustomers)(r),
		Sales:     (*localSales)(r),
		Sequences: (*localSequence)(r),
	}
}

func (s *LocalStore) branch(id string) *localBranch {
	b, ok := s.branches[id]
	if !ok {
		b = &localBranch{}
		b.init()
		s.branches[id] = b
	}
	return b
}

func (s *LocalStore) persistOrLog(branchID string) {
	if err := s.persist(); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"branch": branchID,
			"path":   s.path,
		}).Error("[LocalStore] Failed to write snapshot, keeping change in memory")
	}
}

func (s *LocalStore) persist() error {
	if s.path == "" {
		return nil
	}
	data, err := json.Marshal(s.branches)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// localRepo runs against one branch. held is true inside Atomic, where the
// store lock is already taken.
type localRepo struct {
	store    *LocalStore
	branchID string
	held     bool
}

func (r *localRepo) read(fn func(b *localBranch) error) error {
	if !r.held {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
	}
	return fn(r.store.branch(r.branchID))
}

func (r *localRepo) write(fn func(b *localBranch) error) error {
	if r.held {
		return fn(r.store.branch(r.branchID))
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := fn(r.store.branch(r.branchID)); err != nil {
		return err
	}
	r.store.persistOrLog(r.branchID)
	return nil
}

func cloneProduct(p *models.Product) *models.Product {
	c := *p
	return &c
}

func cloneCustomer(c *models.Customer) *models.Customer {
	out := *c
	out.Transactions = append([]models.Transaction{}, c.Transactions...)
	return &out
}

func cloneSale(s *models.Sale) *models.Sale {
	out := *s
	out.Items = append([]models.SaleItem(nil), s.Items...)
	return &out
}

type localProducts localRepo

func (r *localProducts) repo() *localRepo { return (*localRepo)(r) }

func (r *localProducts) GetByID(_ context.Context, id string) (*models.Product, error) {
	var out *models.Product
	err := r.repo().read(func(b *localBranch) error {
		p, ok := b.Products[id]
		if !ok {
			return apperr.ProductNotFound(id)
		}
		out = cloneProduct(p)
		return nil
	})
	return out, err
}

func (r *localProducts) GetCost(_ context.Context, id string) (decimal.Decimal, error) {
	cost := decimal.Zero
	err := r.repo().read(func(b *localBranch) error {
		p, ok := b.Products[id]
		if !ok {
			return apperr.ProductNotFound(id)
		}
		cost = p.UnitCost
		return nil
	})
	return cost, err
}

func (r *localProducts) GetByIDs(_ context.Context, ids []string) (map[string]*models.Product, error) {
	out := make(map[string]*models.Product, len(ids))
	err := r.repo().read(func(b *localBranch) error {
		for _, id := range ids {
			if p, ok := b.Products[id]; ok {
				out[id] = cloneProduct(p)
			}
		}
		return nil
	})
	return out, err
}

func (r *localProducts) list(lowOnly bool) ([]*models.Product, error) {
	var out []*models.Product
	err := r.repo().read(func(b *localBranch) error {
		for _, p := range b.Products {
			if lowOnly && !p.IsLowStock() {
				continue
			}
			out = append(out, cloneProduct(p))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r *localProducts) List(context.Context) ([]*models.Product, error) {
	return r.list(false)
}

func (r *localProducts) ListLowStock(context.Context) ([]*models.Product, error) {
	return r.list(true)
}

func (r *localProducts) Create(_ context.Context, p *models.Product) error {
	return r.repo().write(func(b *localBranch) error {
		now := time.Now()
		p.BranchID = r.branchID
		p.CreatedAt, p.UpdatedAt = now, now
		b.Products[p.ID] = cloneProduct(p)
		return nil
	})
}

func (r *localProducts) DecrementStock(_ context.Context, id string, qty int) error {
	return r.repo().write(func(b *localBranch) error {
		p, ok := b.Products[id]
		if !ok {
			return apperr.ProductNotFound(id)
		}
		if p.StockQuantity < qty {
			return apperr.InsufficientStock(id)
		}
		p.StockQuantity -= qty
		p.UpdatedAt = time.Now()
		return nil
	})
}

func (r *localProducts) AdjustStock(_ context.Context, id string, delta int) (*models.Product, error) {
	var out *models.Product
	err := r.repo().write(func(b *localBranch) error {
		p, ok := b.Products[id]
		if !ok {
			return apperr.ProductNotFound(id)
		}
		if p.StockQuantity+delta < 0 {
			return apperr.InsufficientStock(id)
		}
		p.StockQuantity += delta
		p.UpdatedAt = time.Now()
		out = cloneProduct(p)
		return nil
	})
	return out, err
}

type localCustomers localRepo

func (r *localCustomers) repo() *localRepo { return (*localRepo)(r) }

func (r *localCustomers) GetByID(_ context.Context, id string) (*models.Customer, error) {
	var out *models.Customer
	err := r.repo().read(func(b *localBranch) error {
		c, ok := b.Customers[id]
		if !ok {
			return apperr.CustomerNotFound(id)
		}
		out = cloneCustomer(c)
		return nil
	})
	return out, err
}

func (r *localCustomers) List(context.Context) ([]*models.Customer, error) {
	var out []*models.Customer
	err := r.repo().read(func(b *localBranch) error {
		for _, c := range b.Customers {
			cc := cloneCustomer(c)
			cc.Transactions = nil
			out = append(out, cc)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].TotalDebt.Cmp(out[j].TotalDebt); cmp != 0 {
			return cmp > 0
		}
		return out[i].Name < out[j].Name
	})
	return out, err
}

func (r *localCustomers) Create(_ context.Context, c *models.Customer) error {
	return r.repo().write(func(b *localBranch) error {
		c.BranchID = r.branchID
		if c.Transactions == nil {
			c.Transactions = []models.Transaction{}
		}
		b.Customers[c.ID] = cloneCustomer(c)
		return nil
	})
}

func (r *localCustomers) AppendTransactions(_ context.Context, id string, entries []models.Transaction, totalDebt decimal.Decimal) error {
	return r.repo().write(func(b *localBranch) error {
		c, ok := b.Customers[id]
		if !ok {
			return apperr.CustomerNotFound(id)
		}
		c.Transactions = append(c.Transactions, entries...)
		c.TotalDebt = totalDebt
		return nil
	})
}

func (r *localCustomers) DeleteTransaction(_ context.Context, id, txID string, totalDebt decimal.Decimal, at time.Time) error {
	return r.repo().write(func(b *localBranch) error {
		c, ok := b.Customers[id]
		if !ok {
			return apperr.CustomerNotFound(id)
		}
		idx := -1
		for i, t := range c.Transactions {
			if t.ID == txID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperr.TransactionNotFound(txID)
		}
		c.Transactions = append(c.Transactions[:idx:idx], c.Transactions[idx+1:]...)
		c.TotalDebt = totalDebt
		c.LedgerDeletions++
		deletedAt := at
		c.LastLedgerDeletionAt = &deletedAt
		return nil
	})
}

type localSales localRepo

func (r *localSales) repo() *localRepo { return (*localRepo)(r) }

func (r *localSales) Create(_ context.Context, s *models.Sale) error {
	return r.repo().write(func(b *localBranch) error {
		s.BranchID = r.branchID
		b.Sales = append(b.Sales, cloneSale(s))
		return nil
	})
}

func (r *localSales) find(match func(s *models.Sale) bool, notFound string) (*models.Sale, error) {
	var out *models.Sale
	err := r.repo().read(func(b *localBranch) error {
		for _, s := range b.Sales {
			if match(s) {
				out = cloneSale(s)
				return nil
			}
		}
		return apperr.SaleNotFound(notFound)
	})
	return out, err
}

func (r *localSales) GetByID(_ context.Context, id string) (*models.Sale, error) {
	return r.find(func(s *models.Sale) bool { return s.ID == id }, id)
}

func (r *localSales) GetByInvoiceNumber(_ context.Context, number string) (*models.Sale, error) {
	return r.find(func(s *models.Sale) bool { return s.InvoiceNumber == number }, number)
}

func (r *localSales) List(_ context.Context, filter models.SaleFilter) ([]*models.Sale, error) {
	var out []*models.Sale
	err := r.repo().read(func(b *localBranch) error {
		for i := len(b.Sales) - 1; i >= 0; i-- {
			s := b.Sales[i]
			if filter.CustomerID != "" && s.CustomerID != filter.CustomerID {
				continue
			}
			if filter.Status != "" && s.Status != filter.Status {
				continue
			}
			if filter.From != nil && s.Date.Before(*filter.From) {
				continue
			}
			if filter.To != nil && s.Date.After(*filter.To) {
				continue
			}
			out = append(out, cloneSale(s))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type localSequence localRepo

func (r *localSequence) repo() *localRepo { return (*localRepo)(r) }

func (r *localSequence) Next(context.Context) (int64, error) {
	var next int64
	err := r.repo().write(func(b *localBranch) error {
		b.InvoiceCounter++
		next = b.InvoiceCounter
		return nil
	})
	return next, err
}

func (r *localSequence) Current(context.Context) (int64, error) {
	var current int64
	err := r.repo().read(func(b *localBranch) error {
		current = b.InvoiceCounter
		return nil
	})
	return current, err
}
