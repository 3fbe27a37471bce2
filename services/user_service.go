package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fieldops_backend/backend"
	"fieldops_backend/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrInvalidCredentials неверный email или пароль
var ErrInvalidCredentials = errors.New("неверный email или пароль")

// UserService работает с пользователями и их паролями
type UserService struct {
	db *gorm.DB
}

// NewUserService создает новый экземпляр UserService
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// GetUser возвращает пользователя по идентификатору
func (us *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := us.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, classify(err, fmt.Sprintf("пользователь %s", id))
	}
	return &user, nil
}

// Authenticate проверяет email и пароль
func (us *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := us.db.WithContext(ctx).First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, classify(err, "ошибка поиска пользователя")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// CreateUserInput данные нового пользователя
type CreateUserInput struct {
	Name            string
	Email           string
	Password        string
	Role            string
	RegionID        *string
	AssignedRegions []string
}

// CreateUser создает пользователя с хешированным паролем
func (us *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if in.Email == "" || len(in.Password) < 8 {
		return nil, backend.NewError(backend.CodeInvalidArgument, "нужны email и пароль не короче 8 символов", nil)
	}
	if in.Role != models.RoleAdmin && in.Role != models.RoleEngineer {
		return nil, backend.NewError(backend.CodeInvalidArgument, fmt.Sprintf("неизвестная роль %q", in.Role), nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	user := &models.User{
		ID:              uuid.New().String(),
		Name:            in.Name,
		Email:           strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash:    string(hash),
		Role:            in.Role,
		RegionID:        in.RegionID,
		AssignedRegions: pq.StringArray(in.AssignedRegions),
	}
	if err := us.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, classify(err, "ошибка создания пользователя")
	}
	return user, nil
}
