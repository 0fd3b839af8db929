package service

import (
	"errors"

	"marketplace/internal/general/logger"
	"marketplace/internal/ports"
)

const producerName = "location-service"

var (
	// ErrUnauthorized covers unknown users and users that are not sellers.
	ErrUnauthorized = errors.New("unauthorized access")
	// ErrSellerNotFound is returned by SellerLocation for ids that are not sellers.
	ErrSellerNotFound = errors.New("seller not found")
)

// sharingService toggles the per-seller sharing flag and serves last-known positions.
type sharingService struct {
	logger *logger.Logger
	uow    ports.UnitOfWork
	users  ports.UserDirectory
	pub    ports.MessagePublisher
}

// NewSharingService constructs the service. pub may be nil when no broker is configured.
func NewSharingService(
	logger *logger.Logger,
	uow ports.UnitOfWork,
	users ports.UserDirectory,
	pub ports.MessagePublisher,
) ports.SharingService {
	return &sharingService{
		logger: logger,
		uow:    uow,
		users:  users,
		pub:    pub,
	}
}
