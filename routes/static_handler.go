package routes

import (
	"io/ioutil"
	"log"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/m-gauthier/pwa-push/models"
	"github.com/markbates/pkger"
)

// StaticHandler serves the embedded web assets: the installability manifest
// and the landing page.
type StaticHandler struct {
	config *models.Config
	assets map[string][]byte
}

func NewStaticHandler(config *models.Config) *StaticHandler {
	return &StaticHandler{config: config, assets: make(map[string][]byte)}
}

// LoadAssets reads every file under the pkger dir into memory. Files come
// from the pkged.go virtual filesystem, or from disk during development.
func (s *StaticHandler) LoadAssets(dir string) error {
	return pkger.Walk(dir, func(filePath string, info os.FileInfo, _ error) error {
		if info == nil || info.IsDir() {
			return nil
		}
		f, err := pkger.Open(filePath)
		if err != nil {
			return err
		}
		defer f.Close()
		content, err := ioutil.ReadAll(f)
		if err != nil {
			return err
		}
		// pkger paths look like module:/web/manifest.json
		assetPath := filePath
		if parts := strings.SplitN(filePath, ":", 2); len(parts) == 2 {
			assetPath = parts[1]
		}
		assetPath = strings.TrimPrefix(assetPath, "/web")
		s.assets[assetPath] = content
		log.Printf("StaticHandler: Added asset %s", assetPath)
		return nil
	})
}

func (s *StaticHandler) HandleStaticAsset(w http.ResponseWriter, r *http.Request) {
	fileName := r.URL.Path
	if fileName == "/" {
		fileName = "/index.html"
	}
	content, exists := s.assets[fileName]
	if !exists {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	if contentType := mime.TypeByExtension(path.Ext(fileName)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Write(content)
}
