package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/listing-api/internal/auth"
	"github.com/vyrodovalexey/listing-api/internal/blob"
	"github.com/vyrodovalexey/listing-api/internal/middleware"
	"github.com/vyrodovalexey/listing-api/internal/model"
	"github.com/vyrodovalexey/listing-api/internal/store"
)

// multipartMemory is how much of a multipart body is kept in memory before
// parts spill to temporary files.
const multipartMemory = 8 << 20

// BlobStore stores and locates image blobs.
type BlobStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Resolve(name string) (string, error)
}

// Publisher receives feed messages for newly stored items.
type Publisher interface {
	Publish(msg model.FeedMessage)
}

// Options tune item submission.
type Options struct {
	ImageRequired  bool
	MaxUploadBytes int64
}

// ListingHandler serves the item listing routes.
type ListingHandler struct {
	store     store.Store
	blobs     BlobStore
	publisher Publisher
	opts      Options
	logger    *zap.Logger
}

// NewListingHandler creates a new ListingHandler. publisher may be nil.
func NewListingHandler(
	s store.Store,
	blobs BlobStore,
	publisher Publisher,
	opts Options,
	logger *zap.Logger,
) *ListingHandler {
	return &ListingHandler{
		store:     s,
		blobs:     blobs,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
	}
}

// RegisterRoutes registers the listing routes. guard wraps the routes that
// create data.
func (h *ListingHandler) RegisterRoutes(router *mux.Router, guard middleware.Middleware) {
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}

	router.HandleFunc("/", h.Hello).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.Handle("/items", guard(http.HandlerFunc(h.AddItem))).Methods(http.MethodPost)
	router.HandleFunc("/items", h.ListItems).Methods(http.MethodGet)
	router.HandleFunc("/items/{item_id}", h.GetItem).Methods(http.MethodGet)
	router.HandleFunc("/search", h.SearchItems).Methods(http.MethodGet)
	router.HandleFunc("/image/{image_name}", h.GetImage).Methods(http.MethodGet)
	router.HandleFunc("/categories", h.ListCategories).Methods(http.MethodGet)
}

// Hello handles GET / requests.
func (h *ListingHandler) Hello(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, model.MessageResponse{Message: "Hello, world!"})
}

// HealthCheck handles GET /health requests.
func (h *ListingHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: Version,
	})
}

// AddItem handles POST /items multipart submissions.
func (h *ListingHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	}

	sub, err := readSubmission(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, h.logger, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.logger.Warn("invalid submission body", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "invalid form body")
		return
	}

	if err := sub.Validate(h.opts.ImageRequired); err != nil {
		h.logger.Warn("validation failed", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	var digest string
	if sub.HasImage {
		digest, err = h.blobs.Put(ctx, sub.Image)
		if err != nil {
			h.logger.Error("failed to store image", zap.Error(err))
			writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	id, err := h.store.Insert(ctx, model.NewItem{
		Name:     sub.Name,
		Category: sub.Category,
		Image:    digest,
	})
	if err != nil {
		h.handleStoreError(w, err, "insert item")
		return
	}

	fields := []zap.Field{
		zap.Int64("item_id", id),
		zap.String("category", sub.Category),
		zap.String("image", digest),
	}
	if seller, ok := auth.FromContext(ctx); ok {
		fields = append(fields, zap.String("seller", seller.Name))
	}
	h.logger.Info("item received", fields...)

	if h.publisher != nil {
		category := sub.Category
		h.publisher.Publish(model.NewItemCreatedMessage(model.ItemView{
			ID:       id,
			Name:     sub.Name,
			Category: &category,
			Image:    digest,
		}))
	}

	writeJSON(w, h.logger, http.StatusOK, model.MessageResponse{
		Message: fmt.Sprintf("item received: %s", sub.Name),
	})
}

// readSubmission extracts the form fields and the optional image part.
// URL-encoded bodies are accepted; they simply carry no image.
func readSubmission(r *http.Request) (*model.Submission, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}

	sub := &model.Submission{
		Name:     r.PostFormValue("name"),
		Category: r.PostFormValue("category"),
	}

	if r.MultipartForm == nil {
		return sub, nil
	}

	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return sub, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading image part: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading image part: %w", err)
	}

	sub.Image = data
	sub.HasImage = true

	return sub, nil
}

// ListItems handles GET /items requests.
func (h *ListingHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context())
	if err != nil {
		h.handleStoreError(w, err, "list items")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, model.ItemsResponse{Items: items})
}

// GetItem handles GET /items/{item_id} requests.
func (h *ListingHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["item_id"], 10, 64)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid item ID")
		return
	}

	item, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, err, "get item")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, item)
}

// SearchItems handles GET /search?keyword= requests.
func (h *ListingHandler) SearchItems(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")

	items, err := h.store.Search(r.Context(), keyword)
	if err != nil {
		h.handleStoreError(w, err, "search items")
		return
	}

	results := make([]model.SearchResult, 0, len(items))
	for _, item := range items {
		results = append(results, item.ToSearchResult())
	}

	writeJSON(w, h.logger, http.StatusOK, model.SearchResponse{Items: results})
}

// GetImage handles GET /image/{image_name} requests.
func (h *ListingHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["image_name"]

	path, err := h.blobs.Resolve(name)
	switch {
	case errors.Is(err, blob.ErrInvalidExtension):
		writeError(w, h.logger, http.StatusBadRequest, "Image path does not end with .jpg")
		return
	case errors.Is(err, blob.ErrInvalidName):
		writeError(w, h.logger, http.StatusBadRequest, "invalid image name")
		return
	case errors.Is(err, blob.ErrNotFound):
		h.logger.Warn("image and placeholder missing", zap.String("image", name))
		writeError(w, h.logger, http.StatusNotFound, "image not found")
		return
	case err != nil:
		h.logger.Error("failed to resolve image", zap.String("image", name), zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeFile(w, r, path)
}

// ListCategories handles GET /categories requests.
func (h *ListingHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.Categories(r.Context())
	if err != nil {
		h.handleStoreError(w, err, "list categories")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, model.CategoriesResponse{Categories: categories})
}

// handleStoreError maps store errors onto HTTP responses.
func (h *ListingHandler) handleStoreError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, h.logger, http.StatusNotFound, "item not found")
	case errors.Is(err, store.ErrInvalidID):
		writeError(w, h.logger, http.StatusBadRequest, "invalid item ID")
	case errors.Is(err, store.ErrEmptyName), errors.Is(err, store.ErrEmptyCategory):
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("store operation failed", zap.String("operation", operation), zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
	}
}
