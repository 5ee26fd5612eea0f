// File: cmd/server/wire.go
//go:build wireinject
// +build wireinject

package main

import (
	"medibook_backend/internal/app"
	"medibook_backend/internal/appointment"
	"medibook_backend/internal/auth"
	"medibook_backend/internal/config"
	"medibook_backend/internal/doctor"
	"medibook_backend/internal/filestorage"
	"medibook_backend/internal/identity"
	"medibook_backend/internal/jobs"
	platformes "medibook_backend/internal/platform/elasticsearch"

	"github.com/google/wire"
)

// initializeApplication is the main Wire injector.
func initializeApplication(cfg *config.Config) (*Application, func(), error) {
	wire.Build(
		// Platform Layer
		provideLogger,
		provideDatabase,
		platformes.NewClient,

		// Session broker
		identity.New,
		provideBlocklistConfig,
		auth.NewInMemoryBlocklistService,
		wire.Bind(new(auth.TokenBlocklistService), new(*auth.InMemoryBlocklistService)),
		auth.NewSessionService,
		wire.Bind(new(auth.Service), new(*auth.SessionService)),
		auth.NewHandler,

		// Doctors
		doctor.NewGORMRepository,
		doctor.NewSearchIndex,
		doctor.NewService,
		wire.Bind(new(doctor.Service), new(*doctor.ServiceImplementation)),
		wire.Bind(new(appointment.DoctorDirectory), new(*doctor.ServiceImplementation)),
		filestorage.NewFileStorageService,
		wire.Bind(new(doctor.ImageStore), new(*filestorage.FileStorageService)),
		doctor.NewHandler,

		// Appointments
		appointment.NewGORMRepository,
		appointment.NewService,
		wire.Bind(new(appointment.Service), new(*appointment.ServiceImplementation)),
		appointment.NewHandler,
		jobs.NewAppointmentExpiryJob,

		// Application Layer
		app.NewServer,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil, nil
}
