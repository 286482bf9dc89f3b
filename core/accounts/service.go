package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cityfix/config"
	"cityfix/core/apperr"
	"cityfix/core/auth"
	"cityfix/core/roles"
	"cityfix/core/store"
	"cityfix/core/utils"
)

type Service struct {
	cfg       *config.AppConfig
	users     store.UsersStore
	companies store.CompaniesStore
	sessions  *auth.SessionManager
	audits    store.AuditStore
	logger    *utils.Logger
}

func NewService(cfg *config.AppConfig, users store.UsersStore, companies store.CompaniesStore, sessions *auth.SessionManager, audits store.AuditStore, logger *utils.Logger) *Service {
	return &Service{cfg: cfg, users: users, companies: companies, sessions: sessions, audits: audits, logger: logger}
}

type UserInput struct {
	Username  string
	Password  string
	FullName  string
	Email     string
	Role      string
	CompanyID *int64
}

type CompanyInput struct {
	Name           string
	Categories     []string
	PlatformAccess bool
}

// Register creates a CITIZEN account. Any role in the payload is ignored.
func (s *Service) Register(ctx context.Context, in UserInput) (*store.User, error) {
	in.Role = roles.Citizen{}.Name()
	in.CompanyID = nil
	u, err := s.createUser(ctx, in)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, u.Username, "auth.register", fmt.Sprintf("user=%d", u.ID))
	return u, nil
}

// CreateUser is the administrator path for staff and maintainer accounts.
func (s *Service) CreateUser(ctx context.Context, actor *roles.Actor, in UserInput) (*store.User, error) {
	if roles.TierOf(actor) != roles.TierAdministrator {
		return nil, apperr.NewAuthorizationError("users.forbidden", "only administrators create users")
	}
	u, err := s.createUser(ctx, in)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor.Username, "users.create", fmt.Sprintf("user=%d role=%s", u.ID, u.Role))
	return u, nil
}

func (s *Service) createUser(ctx context.Context, in UserInput) (*store.User, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if username == "" {
		return nil, apperr.NewValidationError("users.usernameRequired", "username is required")
	}
	role, err := roles.Parse(in.Role)
	if err != nil {
		return nil, apperr.NewValidationError("users.roleInvalid", err.Error())
	}
	var companyID *int64
	if role.Tier() == roles.TierExternalMaintainer {
		if in.CompanyID == nil {
			return nil, apperr.NewValidationError("users.companyRequired", "external maintainers belong to a company")
		}
		company, err := s.companies.GetCompany(ctx, *in.CompanyID)
		if err != nil {
			return nil, err
		}
		if company == nil {
			return nil, apperr.NewNotFoundError("companies.notFound", fmt.Sprintf("company %d not found", *in.CompanyID))
		}
		if !company.PlatformAccess {
			return nil, apperr.NewValidationError("users.companyNoPlatformAccess", fmt.Sprintf("company %d has no platform access", company.ID))
		}
		id := company.ID
		companyID = &id
	} else if in.CompanyID != nil {
		return nil, apperr.NewValidationError("users.companyNotAllowed", "only external maintainers belong to a company")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.NewValidationError("users.passwordWeak", err.Error())
	}
	u := &store.User{
		Username:     username,
		FullName:     strings.TrimSpace(in.FullName),
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		Role:         role.Name(),
		CompanyID:    companyID,
		Active:       true,
	}
	if _, err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.NewConflictError("users.usernameTaken", fmt.Sprintf("username %q already exists", username))
		}
		return nil, err
	}
	return u, nil
}

// Login checks credentials and opens a session. Unknown users, inactive users
// and bad passwords all collapse into auth.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, cred auth.Credentials, ip, userAgent string) (*auth.Session, *store.User, error) {
	username := strings.ToLower(strings.TrimSpace(cred.Username))
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	if user == nil || !user.Active {
		s.audit(ctx, username, "auth.login_failed", "unknown or inactive")
		return nil, nil, auth.ErrInvalidCredentials
	}
	if err := auth.CheckPassword(user.PasswordHash, cred.Password); err != nil {
		s.audit(ctx, username, "auth.login_failed", "bad password")
		return nil, nil, auth.ErrInvalidCredentials
	}
	if _, err := roles.Parse(user.Role); err != nil {
		return nil, nil, fmt.Errorf("user %d: %w", user.ID, err)
	}
	sess, err := s.sessions.Create(ctx, user, ip, userAgent)
	if err != nil {
		return nil, nil, err
	}
	s.audit(ctx, user.Username, "auth.login", "")
	return sess, user, nil
}

func (s *Service) Logout(ctx context.Context, sess *store.SessionRecord) error {
	if sess == nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return err
	}
	s.audit(ctx, sess.Username, "auth.logout", "")
	return nil
}

// EnsureAdmin creates the bootstrap administrator on an empty users table.
func (s *Service) EnsureAdmin(ctx context.Context) error {
	if s.cfg == nil || strings.TrimSpace(s.cfg.Bootstrap.AdminPassword) == "" {
		return nil
	}
	count, err := s.users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	u, err := s.createUser(ctx, UserInput{
		Username: s.cfg.Bootstrap.AdminUsername,
		Password: s.cfg.Bootstrap.AdminPassword,
		FullName: "Administrator",
		Role:     roles.Administrator{}.Name(),
	})
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if s.logger != nil {
		s.logger.Printf("bootstrap administrator %q created", u.Username)
	}
	s.audit(ctx, "system", "users.bootstrap_admin", fmt.Sprintf("user=%d", u.ID))
	return nil
}

func (s *Service) ListCompanies(ctx context.Context, actor *roles.Actor) ([]store.ExternalCompany, error) {
	if roles.TierOf(actor) != roles.TierAdministrator {
		return nil, apperr.NewAuthorizationError("companies.forbidden", "only administrators manage companies")
	}
	items, err := s.companies.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.ExternalCompany{}
	}
	return items, nil
}

func (s *Service) CreateCompany(ctx context.Context, actor *roles.Actor, in CompanyInput) (*store.ExternalCompany, error) {
	if roles.TierOf(actor) != roles.TierAdministrator {
		return nil, apperr.NewAuthorizationError("companies.forbidden", "only administrators manage companies")
	}
	company, err := s.companyFromInput(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.companies.CreateCompany(ctx, company); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.NewConflictError("companies.nameTaken", fmt.Sprintf("company %q already exists", company.Name))
		}
		return nil, err
	}
	s.audit(ctx, actor.Username, "companies.create", fmt.Sprintf("company=%d platform=%t", company.ID, company.PlatformAccess))
	return company, nil
}

// UpdateCompany replaces name, categories and platform access. Revoking access
// takes effect on the next resolver or maintainer check.
func (s *Service) UpdateCompany(ctx context.Context, actor *roles.Actor, id int64, in CompanyInput) (*store.ExternalCompany, error) {
	if roles.TierOf(actor) != roles.TierAdministrator {
		return nil, apperr.NewAuthorizationError("companies.forbidden", "only administrators manage companies")
	}
	existing, err := s.companies.GetCompany(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.NewNotFoundError("companies.notFound", fmt.Sprintf("company %d not found", id))
	}
	company, err := s.companyFromInput(in)
	if err != nil {
		return nil, err
	}
	company.ID = existing.ID
	company.CreatedAt = existing.CreatedAt
	if err := s.companies.UpdateCompany(ctx, company); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.NewConflictError("companies.nameTaken", fmt.Sprintf("company %q already exists", company.Name))
		}
		return nil, err
	}
	s.audit(ctx, actor.Username, "companies.update", fmt.Sprintf("company=%d platform=%t", company.ID, company.PlatformAccess))
	return company, nil
}

func (s *Service) companyFromInput(in CompanyInput) (*store.ExternalCompany, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.NewValidationError("companies.nameRequired", "company name is required")
	}
	seen := map[store.Category]struct{}{}
	cats := make([]store.Category, 0, len(in.Categories))
	for _, raw := range in.Categories {
		c, ok := store.ParseCategory(raw)
		if !ok {
			return nil, apperr.NewValidationError("companies.categoryInvalid", fmt.Sprintf("unknown category %q", raw))
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		cats = append(cats, c)
	}
	if len(cats) == 0 {
		return nil, apperr.NewValidationError("companies.categoriesRequired", "at least one category is required")
	}
	if limit := s.cfg.MaxCompanyCategories(); len(cats) > limit {
		return nil, apperr.NewValidationError("companies.tooManyCategories", fmt.Sprintf("at most %d categories per company", limit))
	}
	return &store.ExternalCompany{Name: name, Categories: cats, PlatformAccess: in.PlatformAccess}, nil
}

func (s *Service) audit(ctx context.Context, username, action, details string) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Log(ctx, username, action, details); err != nil && s.logger != nil {
		s.logger.Errorf("audit %s: %v", action, err)
	}
}
