package http

import (
	"net/http"
)

type installRequest struct {
	PackageName string `json:"package_name"`
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	req := &installRequest{}
	if !decode(w, r, req) {
		return
	}
	result := s.Installer.Install(r.Context(), req.PackageName)
	encode(w, result.HTTPStatus(), result)
}
