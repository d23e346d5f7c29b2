package handlers

import (
	"net/http"
	"os"
	"strings"
)

// AssetHandler serves assets written by the local asset store
type AssetHandler struct {
	files http.Handler
}

// NewAssetHandler serves files under root at the given URL prefix
func NewAssetHandler(prefix, root string) *AssetHandler {
	return &AssetHandler{
		files: http.StripPrefix(prefix, http.FileServer(noListingFS{http.Dir(root)})),
	}
}

func (h *AssetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/") {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	h.files.ServeHTTP(w, r)
}

// noListingFS hides directories from http.FileServer
type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}

	return f, nil
}
