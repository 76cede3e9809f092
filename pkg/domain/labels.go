package domain

import (
	"errors"
	"fmt"
)

// UnknownLabel is substituted for a class id the registry does not know.
const UnknownLabel = "Unknown"

var ErrUnknownLabel = errors.New("unknown label")

// Departments is the fixed routing table the adapter was fine-tuned on, in class id order.
var Departments = []string{
	"Bank account or service",
	"Checking or savings account",
	"Consumer Loan",
	"Credit card",
	"Credit card or prepaid card",
	"Credit reporting",
	"Credit reporting or other personal consumer reports",
	"Credit reporting, credit repair services, or other personal consumer reports",
	"Debt collection",
	"Debt or credit management",
	"Money transfer, virtual currency, or money service",
	"Money transfers",
	"Mortgage",
	"Other financial service",
	"Payday loan",
	"Payday loan, title loan, or personal loan",
	"Payday loan, title loan, personal loan, or advance loan",
	"Prepaid card",
	"Student loan",
	"Vehicle loan or lease",
}

var departmentRegistry = mustLabelRegistry(Departments)

// DepartmentRegistry returns the process wide registry over Departments.
func DepartmentRegistry() *LabelRegistry {
	return departmentRegistry
}

// LabelRegistry is an immutable bijection between class ids 0..N-1 and label names.
type LabelRegistry struct {
	id2label []string
	label2id map[string]int
}

// NewLabelRegistry builds a registry where names[i] is the label of class i.
func NewLabelRegistry(names []string) (*LabelRegistry, error) {
	if len(names) == 0 {
		return nil, errors.New("no labels")
	}
	r := &LabelRegistry{
		id2label: make([]string, len(names)),
		label2id: make(map[string]int, len(names)),
	}
	for i, n := range names {
		if n == "" {
			return nil, fmt.Errorf("empty label for id %d", i)
		}
		if prev, ok := r.label2id[n]; ok {
			return nil, fmt.Errorf("duplicate label %q for ids %d and %d", n, prev, i)
		}
		r.id2label[i] = n
		r.label2id[n] = i
	}
	return r, nil
}

func mustLabelRegistry(names []string) *LabelRegistry {
	r, err := NewLabelRegistry(names)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *LabelRegistry) Len() int {
	return len(r.id2label)
}

// Lookup returns the label for id, or ErrUnknownLabel.
func (r *LabelRegistry) Lookup(id int) (string, error) {
	if id < 0 || id >= len(r.id2label) {
		return "", fmt.Errorf("class id %d: %w", id, ErrUnknownLabel)
	}
	return r.id2label[id], nil
}

// Name returns the label for id, or def when id is outside the registry.
func (r *LabelRegistry) Name(id int, def string) string {
	if n, err := r.Lookup(id); err == nil {
		return n
	}
	return def
}

// ID returns the class id for name, or ErrUnknownLabel.
func (r *LabelRegistry) ID(name string) (int, error) {
	id, ok := r.label2id[name]
	if !ok {
		return 0, fmt.Errorf("label %q: %w", name, ErrUnknownLabel)
	}
	return id, nil
}

// Names returns the labels in class id order.
func (r *LabelRegistry) Names() []string {
	out := make([]string, len(r.id2label))
	copy(out, r.id2label)
	return out
}

func (r *LabelRegistry) ID2Label() map[int]string {
	out := make(map[int]string, len(r.id2label))
	for i, n := range r.id2label {
		out[i] = n
	}
	return out
}

func (r *LabelRegistry) Label2ID() map[string]int {
	out := make(map[string]int, len(r.label2id))
	for n, i := range r.label2id {
		out[n] = i
	}
	return out
}
