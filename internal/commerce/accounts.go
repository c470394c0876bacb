package commerce

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	// Owners only.
	StoreName     string
	StoreLocation string
}

// Account is a registered user and, for owners, their store.
type Account struct {
	User  *bookstore.User  `json:"user"`
	Store *bookstore.Store `json:"store,omitempty"`
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (in *RegisterInput) validate() (bookstore.Role, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" {
		return "", bookstore.Invalid("name", "Name is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil || in.Email == "" {
		return "", bookstore.Invalid("email", "Invalid email")
	}
	if len(in.Password) < minPasswordLen {
		return "", bookstore.Invalid("password", "Password must be at least 6 characters")
	}
	role, err := bookstore.ParseRole(in.Role)
	if err != nil {
		return "", err
	}
	if role == bookstore.RoleOwner {
		in.StoreName = strings.TrimSpace(in.StoreName)
		in.StoreLocation = strings.TrimSpace(in.StoreLocation)
		if in.StoreName == "" || in.StoreLocation == "" {
			return "", bookstore.Invalid("store", "Store name and location are required for owners")
		}
	}
	return role, nil
}

// Register creates the user and, for an owner, their store in one unit.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	role, err := in.validate()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.Opts.BcryptCost)
	if err != nil {
		return nil, err
	}

	acc := &Account{}
	err = s.run(ctx, "register", func(ctx context.Context, tx bookstore.Tx, pr *progress) error {
		u := &bookstore.User{
			ID:           uuid.NewString(),
			Name:         in.Name,
			Email:        in.Email,
			PasswordHash: string(hash),
			Role:         role,
			Balance:      decimal.Zero,
		}
		pr.at("validated", "user_id", u.ID, "role", string(role))
		if err := tx.InsertUser(ctx, u); err != nil {
			if errors.Is(err, bookstore.ErrEmailTaken) {
				return bookstore.Reject(bookstore.ErrEmailTaken, "User already exists")
			}
			return err
		}
		acc.User, acc.Store = u, nil
		if role != bookstore.RoleOwner {
			return nil
		}
		st := &bookstore.Store{
			ID:            uuid.NewString(),
			Name:          in.StoreName,
			Location:      in.StoreLocation,
			OwnerID:       u.ID,
			Balance:       decimal.Zero,
			MarginPercent: s.Opts.DefaultMarginPercent,
		}
		pr.at("user_created", "store_id", st.ID)
		if err := tx.InsertStore(ctx, st); err != nil {
			if errors.Is(err, bookstore.ErrStoreExists) {
				return bookstore.Reject(bookstore.ErrStoreExists, "Owner already has a store")
			}
			return err
		}
		if err := tx.LinkUserStore(ctx, u.ID, st.ID); err != nil {
			return err
		}
		u.StoreID = st.ID
		acc.Store = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("user registered", "user_id", acc.User.ID, "role", string(acc.User.Role))
	return acc, nil
}

// Login checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*bookstore.User, error) {
	bad := bookstore.Reject(bookstore.ErrUnauthenticated, "Invalid credentials")
	u, err := s.Store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if bookstore.IsNotFound(err) {
			return nil, bad
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, bad
	}
	return u, nil
}
