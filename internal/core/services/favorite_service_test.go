// internal/core/services/favorite_service_test.go
package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/services"
	"github.com/ammerola/storefront-be/test/helpers"
	"github.com/ammerola/storefront-be/test/mocks"
)

func TestFavoriteService_Toggle(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockFavoriteRepository(ctrl)

	invalidated := 0
	svc := services.NewFavoriteService(repo, invalidatorFunc(func(context.Context) error {
		invalidated++
		return nil
	}), helpers.TestLogger())

	productID := uuid.New()
	gomock.InOrder(
		repo.EXPECT().Toggle(gomock.Any(), "user-1", productID).Return(true, nil),
		repo.EXPECT().Toggle(gomock.Any(), "user-1", productID).Return(false, nil),
	)

	on, err := svc.Toggle(context.Background(), "user-1", productID)
	require.NoError(t, err)
	assert.True(t, on)

	off, err := svc.Toggle(context.Background(), "user-1", productID)
	require.NoError(t, err)
	assert.False(t, off)
	assert.Equal(t, 2, invalidated)
}

func TestFavoriteService_RequiresUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := services.NewFavoriteService(mocks.NewMockFavoriteRepository(ctrl), nil, helpers.TestLogger())

	_, err := svc.Toggle(context.Background(), " ", uuid.New())
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.List(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestFavoriteService_UnknownProduct(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockFavoriteRepository(ctrl)
	svc := services.NewFavoriteService(repo, nil, helpers.TestLogger())

	repo.EXPECT().Toggle(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, domain.ErrNotFound)

	_, err := svc.Toggle(context.Background(), "user-1", uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
