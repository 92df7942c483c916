package payments

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2/log"

	"github.com/boletera/boletera/app/models"
)

// MatchStatus is the three-way result of one strategy.
type MatchStatus int

const (
	MatchNotFound MatchStatus = iota
	MatchFound
	MatchAmbiguous
)

// Strategy resolves a notification to at most one payment within a scope.
// Strategies never mutate state.
type Strategy interface {
	Name() string
	Match(n *Notification, scope Scope) (*models.Payment, MatchStatus, error)
}

// Matcher runs an ordered list of strategies, first match wins. Ambiguity
// aborts immediately: a later, weaker strategy must not paper over an
// identifier collision.
type Matcher struct {
	strategies []Strategy
}

// NewMatcher builds the standard strategy chain over repo.
func NewMatcher(repo Repository) *Matcher {
	return &Matcher{
		strategies: []Strategy{
			&byProviderPaymentID{repo: repo},
			&byCheckoutID{repo: repo},
			&byOrderCodeAndLocalID{repo: repo},
			&byOrderCodeLatestOpen{repo: repo},
		},
	}
}

// Match resolves n to exactly one payment or fails with
// ErrPaymentNotFound / ErrAmbiguousMatch.
func (m *Matcher) Match(n *Notification, scope Scope) (*models.Payment, error) {
	for _, s := range m.strategies {
		payment, status, err := s.Match(n, scope)
		if err != nil {
			return nil, fmt.Errorf("matcher strategy %s: %w", s.Name(), err)
		}
		switch status {
		case MatchFound:
			log.Infof("[Matcher] Payment %d matched via %s (state=%s)", payment.ID, s.Name(), payment.State)
			return payment, nil
		case MatchAmbiguous:
			log.Errorf("[Matcher] Strategy %s found multiple candidates for event %s, refusing to guess", s.Name(), n.EventID)
			return nil, fmt.Errorf("strategy %s: %w", s.Name(), ErrAmbiguousMatch)
		}
	}
	return nil, ErrPaymentNotFound
}

// singleFromInfoRef applies the shared uniqueness rule for info-blob
// identifier lookups.
func singleFromInfoRef(repo Repository, scope Scope, ref string) (*models.Payment, MatchStatus, error) {
	candidates, err := repo.FindPaymentsByInfoRef(scope, ref)
	if err != nil {
		return nil, MatchNotFound, err
	}
	switch len(candidates) {
	case 0:
		return nil, MatchNotFound, nil
	case 1:
		p := candidates[0]
		return &p, MatchFound, nil
	default:
		return nil, MatchAmbiguous, nil
	}
}

// byProviderPaymentID matches on Recurrente's payment id stored in the
// info blob at checkout settlement time.
type byProviderPaymentID struct {
	repo Repository
}

func (s *byProviderPaymentID) Name() string { return "provider_payment_id" }

func (s *byProviderPaymentID) Match(n *Notification, scope Scope) (*models.Payment, MatchStatus, error) {
	if n.ProviderPaymentID == "" {
		return nil, MatchNotFound, nil
	}
	return singleFromInfoRef(s.repo, scope, n.ProviderPaymentID)
}

// byCheckoutID matches on the checkout session id planted in the info blob
// when the checkout was created.
type byCheckoutID struct {
	repo Repository
}

func (s *byCheckoutID) Name() string { return "checkout_id" }

func (s *byCheckoutID) Match(n *Notification, scope Scope) (*models.Payment, MatchStatus, error) {
	if n.CheckoutID == "" {
		return nil, MatchNotFound, nil
	}
	return singleFromInfoRef(s.repo, scope, n.CheckoutID)
}

// byOrderCodeAndLocalID matches on the metadata order code plus the local
// payment record id we planted in the checkout metadata.
type byOrderCodeAndLocalID struct {
	repo Repository
}

func (s *byOrderCodeAndLocalID) Name() string { return "order_code_payment_id" }

func (s *byOrderCodeAndLocalID) Match(n *Notification, scope Scope) (*models.Payment, MatchStatus, error) {
	if n.OrderCode == "" || n.LocalPaymentID == "" {
		return nil, MatchNotFound, nil
	}
	id, err := strconv.ParseUint(n.LocalPaymentID, 10, 32)
	if err != nil {
		return nil, MatchNotFound, nil
	}
	p, err := s.repo.FindPaymentByLocalID(scope, n.OrderCode, uint(id))
	if errors.Is(err, ErrPaymentNotFound) {
		return nil, MatchNotFound, nil
	}
	if err != nil {
		return nil, MatchNotFound, err
	}
	return p, MatchFound, nil
}

// byOrderCodeLatestOpen falls back to the most recent non-terminal payment
// for the metadata order code. Selecting the latest is a deliberate
// tie-break, not a guess: only one checkout per order is normally open.
type byOrderCodeLatestOpen struct {
	repo Repository
}

func (s *byOrderCodeLatestOpen) Name() string { return "order_code_latest_open" }

func (s *byOrderCodeLatestOpen) Match(n *Notification, scope Scope) (*models.Payment, MatchStatus, error) {
	if n.OrderCode == "" {
		return nil, MatchNotFound, nil
	}
	p, err := s.repo.FindLatestNonTerminalPayment(scope, n.OrderCode)
	if errors.Is(err, ErrPaymentNotFound) {
		return nil, MatchNotFound, nil
	}
	if err != nil {
		return nil, MatchNotFound, err
	}
	return p, MatchFound, nil
}
