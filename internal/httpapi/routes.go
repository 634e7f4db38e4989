package httpapi

import "github.com/go-chi/chi/v5"

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Post("/signal", s.handleSignal)
	s.router.Get("/status", s.handleStatus)
	s.router.Get("/allocation", s.handleAllocation)
	s.router.Get("/treasury", s.handleTreasury)
	s.router.Get("/breaker", s.handleBreaker)
	s.router.Post("/breaker/reset", s.handleBreakerReset)

	s.router.Route("/config", func(r chi.Router) {
		r.Get("/catalog", s.handleConfigCatalog)
		r.Get("/effective", s.handleConfigEffective)
		r.Post("/override", s.handleConfigCreateOverride)
		r.Delete("/override", s.handleConfigRollbackOverride)
		r.Get("/receipts", s.handleConfigReceipts)
		r.Post("/bulk", s.handleConfigBulk)
		r.Post("/preset/{name}", s.handleConfigPreset)
	})
}
