package rest

import (
	"github.com/go-chi/chi/v5"
)

// Dependency injection container.
func Container(args *ContainerArgs) *Handler {
	return &Handler{
		service: NewService(args.Root, args.Pool, args.Metrics),
		root:    args.Root,
	}
}

func ApplyRouter(args *ContainerArgs) func(chi.Router) {
	h := Container(args)

	return func(r chi.Router) {
		r.Get("/", h.Health)
		r.Post("/download", h.Download)
		r.Post("/download/", h.Download)
		r.Get("/files/{filename}", h.File)
	}
}
