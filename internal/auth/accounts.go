package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"cvbuilder/internal/database"
	"cvbuilder/internal/errcode"
	"cvbuilder/internal/logging"
)

// LoginPolicy 控制登录限流与锁定。
type LoginPolicy struct {
	RateLimitPerHour int
	LockThreshold    int
	LockTTL          time.Duration
}

// Accounts 实现注册、登录、刷新、退出与个人资料维护。
type Accounts struct {
	db       *gorm.DB
	tokens   *AuthService
	sessions SessionStore
	policy   LoginPolicy
}

func NewAccounts(db *gorm.DB, tokens *AuthService, sessions SessionStore, policy LoginPolicy) *Accounts {
	return &Accounts{db: db, tokens: tokens, sessions: sessions, policy: policy}
}

// Tokens 暴露令牌服务，供中间件校验 access token。
func (a *Accounts) Tokens() *AuthService {
	return a.tokens
}

// UserView 是账号的对外表示，不含密码哈希。
type UserView struct {
	ID                 uint   `json:"id"`
	Username           string `json:"username"`
	Email              string `json:"email"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	MustChangePassword bool   `json:"must_change_password"`
}

func newUserView(u database.User) UserView {
	return UserView{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		MustChangePassword: u.MustChangePassword,
	}
}

// RegisterInput 是注册入参，形状校验由调用方完成。
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// ProfilePatch 是个人资料的部分更新；nil 表示未提供。
type ProfilePatch struct {
	Email     *string
	FirstName *string
	LastName  *string
}

// Session 是登录或刷新后的结果。
type Session struct {
	Tokens             TokenPair
	MustChangePassword bool
}

// Register 创建账号；用户名或邮箱重复时返回 VALIDATION。
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (UserView, error) {
	user, err := a.createUser(ctx, in, false)
	if err != nil {
		return UserView{}, err
	}
	logging.FromContext(ctx).Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	return newUserView(user), nil
}

// CreateAccount 创建带随机初始密码的账号，首次登录必须改密。
func (a *Accounts) CreateAccount(ctx context.Context, username, email string) (UserView, string, error) {
	password, err := GenerateInitialPassword(24)
	if err != nil {
		return UserView{}, "", errcode.Unexpected("generate initial password", err)
	}
	user, err := a.createUser(ctx, RegisterInput{Username: username, Email: email, Password: password}, true)
	if err != nil {
		return UserView{}, "", err
	}
	return newUserView(user), password, nil
}

func (a *Accounts) createUser(ctx context.Context, in RegisterInput, mustChange bool) (database.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" {
		return database.User{}, fieldError("username", "is required")
	}
	if email == "" {
		return database.User{}, fieldError("email", "is required")
	}

	db := a.db.WithContext(ctx)
	var count int64
	if err := db.Model(&database.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return database.User{}, errcode.Unexpected("lookup username", err)
	}
	if count > 0 {
		return database.User{}, fieldError("username", "is already taken")
	}
	if err := db.Model(&database.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return database.User{}, errcode.Unexpected("lookup email", err)
	}
	if count > 0 {
		return database.User{}, fieldError("email", "is already registered")
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		return database.User{}, errcode.Unexpected("hash password", err)
	}
	user := database.User{
		Username:           username,
		Email:              email,
		FirstName:          strings.TrimSpace(in.FirstName),
		LastName:           strings.TrimSpace(in.LastName),
		PasswordHash:       hashed,
		MustChangePassword: mustChange,
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return database.User{}, errcode.Validation("username or email already exists", nil)
		}
		return database.User{}, errcode.Unexpected("create user", err)
	}
	return user, nil
}

// Login 校验口令并签发令牌；同一 IP+用户名每小时限次，连续失败会临时锁定。
func (a *Accounts) Login(ctx context.Context, ip, username, password string) (Session, error) {
	log := logging.FromContext(ctx).With(slog.String("username", username))

	count, err := a.sessions.CountLoginAttempt(ctx, ip, username)
	if err != nil {
		log.Warn("login rate counter unavailable", slog.Any("error", err))
		count = 0
	}
	if a.policy.RateLimitPerHour > 0 && count > int64(a.policy.RateLimitPerHour) {
		return Session{}, errcode.RateLimited("rate limit exceeded")
	}
	locked, err := a.sessions.IsLocked(ctx, username)
	if err != nil {
		log.Warn("login lock lookup failed", slog.Any("error", err))
	}
	if locked {
		return Session{}, errcode.RateLimited("account temporarily locked")
	}

	var user database.User
	err = a.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).Take(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		log.Info("login failed: user not found")
		a.recordFailure(ctx, log, username)
		return Session{}, errcode.Unauthorized("invalid credentials")
	case err != nil:
		return Session{}, errcode.Unexpected("login lookup", err)
	}

	if !CheckPasswordHash(password, user.PasswordHash) {
		log.Info("login failed: password mismatch", slog.Uint64("user_id", uint64(user.ID)))
		a.recordFailure(ctx, log, username)
		return Session{}, errcode.Unauthorized("invalid credentials")
	}
	if err := a.sessions.ClearLoginFailures(ctx, username); err != nil {
		log.Warn("clear login failures failed", slog.Any("error", err))
	}

	return a.issue(user)
}

func (a *Accounts) recordFailure(ctx context.Context, log *slog.Logger, username string) {
	if err := a.sessions.RecordLoginFailure(ctx, username, a.policy.LockThreshold, a.policy.LockTTL); err != nil {
		log.Warn("record login failure failed", slog.Any("error", err))
	}
}

// Refresh 用刷新令牌换取新令牌对，旧刷新令牌随即作废。
func (a *Accounts) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := a.refreshClaims(ctx, refreshToken)
	if err != nil {
		return Session{}, err
	}

	var user database.User
	if err := a.db.WithContext(ctx).Take(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Session{}, errcode.Unauthorized("unauthorized")
		}
		return Session{}, errcode.Unexpected("refresh lookup", err)
	}

	session, err := a.issue(user)
	if err != nil {
		return Session{}, err
	}
	if err := a.sessions.RevokeRefresh(ctx, claims.ID, a.tokens.remainingTTL(claims)); err != nil {
		return Session{}, errcode.Unexpected("revoke refresh token", err)
	}
	return session, nil
}

// Logout 将刷新令牌加入黑名单。
func (a *Accounts) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return fieldError("refresh_token", "is required")
	}
	claims, err := a.refreshClaims(ctx, refreshToken)
	if err != nil {
		return err
	}
	if err := a.sessions.RevokeRefresh(ctx, claims.ID, a.tokens.remainingTTL(claims)); err != nil {
		return errcode.Unexpected("revoke refresh token", err)
	}
	logging.FromContext(ctx).Info("user logged out", slog.Uint64("user_id", uint64(claims.UserID)))
	return nil
}

func (a *Accounts) refreshClaims(ctx context.Context, refreshToken string) (*TokenClaims, error) {
	claims, err := a.tokens.ValidateToken(refreshToken, TokenTypeRefresh)
	if err != nil {
		logging.FromContext(ctx).Info("refresh token rejected", slog.Any("error", err))
		return nil, errcode.Unauthorized("unauthorized")
	}
	revoked, err := a.sessions.IsRefreshRevoked(ctx, claims.ID)
	if err != nil {
		return nil, errcode.Unexpected("refresh blacklist lookup", err)
	}
	if revoked {
		return nil, errcode.Unauthorized("unauthorized")
	}
	return claims, nil
}

// Profile 返回当前用户资料。
func (a *Accounts) Profile(ctx context.Context, userID uint) (UserView, error) {
	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return UserView{}, err
	}
	return newUserView(user), nil
}

// UpdateProfile 部分更新邮箱与姓名。
func (a *Accounts) UpdateProfile(ctx context.Context, userID uint, patch ProfilePatch) (UserView, error) {
	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return UserView{}, err
	}

	updates := map[string]any{}
	if patch.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*patch.Email))
		if email == "" {
			return UserView{}, fieldError("email", "is required")
		}
		if email != user.Email {
			var count int64
			if err := a.db.WithContext(ctx).Model(&database.User{}).
				Where("email = ? AND id <> ?", email, userID).
				Count(&count).Error; err != nil {
				return UserView{}, errcode.Unexpected("lookup email", err)
			}
			if count > 0 {
				return UserView{}, fieldError("email", "is already registered")
			}
		}
		updates["email"] = email
	}
	if patch.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*patch.LastName)
	}
	if len(updates) > 0 {
		if err := a.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return UserView{}, fieldError("email", "is already registered")
			}
			return UserView{}, errcode.Unexpected("update profile", err)
		}
	}
	return a.Profile(ctx, userID)
}

// ChangePassword 校验当前密码后更新，并清除强制改密标记。
// refreshToken 非空且有效时一并吊销。
func (a *Accounts) ChangePassword(ctx context.Context, userID uint, current, next, refreshToken string) (Session, error) {
	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	log := logging.FromContext(ctx).With(slog.Uint64("user_id", uint64(userID)))

	if !CheckPasswordHash(current, user.PasswordHash) {
		log.Info("change password: current password mismatch")
		return Session{}, errcode.Unauthorized("current password is incorrect")
	}
	if strings.TrimSpace(next) == strings.TrimSpace(current) {
		return Session{}, fieldError("new_password", "must differ from current password")
	}

	hashed, err := HashPassword(next)
	if err != nil {
		return Session{}, errcode.Unexpected("hash password", err)
	}
	if err := a.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password_hash":        hashed,
		"must_change_password": false,
	}).Error; err != nil {
		return Session{}, errcode.Unexpected("update password", err)
	}

	if refreshToken != "" {
		if claims, err := a.tokens.ValidateToken(refreshToken, TokenTypeRefresh); err == nil && claims.UserID == userID {
			if err := a.sessions.RevokeRefresh(ctx, claims.ID, a.tokens.remainingTTL(claims)); err != nil {
				return Session{}, errcode.Unexpected("revoke refresh token", err)
			}
		}
	}
	log.Info("password changed")

	user.MustChangePassword = false
	return a.issue(user)
}

func (a *Accounts) loadUser(ctx context.Context, userID uint) (database.User, error) {
	var user database.User
	if err := a.db.WithContext(ctx).Take(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.User{}, errcode.Unauthorized("unauthorized")
		}
		return database.User{}, errcode.Unexpected("load user", err)
	}
	return user, nil
}

func (a *Accounts) issue(user database.User) (Session, error) {
	pair, err := a.tokens.GenerateTokenPair(user.ID, user.MustChangePassword)
	if err != nil {
		return Session{}, errcode.Unexpected("generate token pair", err)
	}
	return Session{Tokens: pair, MustChangePassword: user.MustChangePassword}, nil
}

func fieldError(field, msg string) error {
	return errcode.Validation("validation failed", map[string]any{
		"fields": map[string]string{field: msg},
	})
}
