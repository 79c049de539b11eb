package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, codec *TokenCodec, policy *AccessPolicy, authService AuthService,
	adminRepo AdminRepository, db *pgxpool.Pool, redisClient *redis.Client, storage StorageClient) *gin.Engine {
	r := gin.Default()

	// Global middleware: CORS -> authenticate+gate
	r.Use(CORSMiddleware(cfg))
	r.Use(AuthMiddleware(codec, policy))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	eventRepo := NewPgEventRepository(db)
	categoryRepo := NewPgCategoryRepository(db)
	offeringRepo := NewPgOfferingRepository(db)
	feedbackRepo := NewPgFeedbackRepository(db)
	offeringReqRepo := NewPgOfferingRequestRepository(db)
	eventReqRepo := NewPgEventRequestRepository(db)
	settingRepo := NewPgSettingRepository(db)
	notifier := NewNotificationService(NewRedisQueue(redisClient))
	metricsService := NewMetricsService(redisClient)

	api := r.Group("/api")

	// ---- auth ----
	// These endpoints bypass the generic gate (see the policy table) and
	// do their own header handling so they can name the failure reason.

	api.POST("/auth/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request")
			return
		}

		admin, err := authService.Authenticate(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				respondError(c, http.StatusUnauthorized, "Invalid credentials")
				return
			}
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}

		token, err := codec.IssueToken(admin.Username, RoleAdmin, time.Now())
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"admin": gin.H{"username": admin.Username, "name": admin.Name},
		})
	})

	api.POST("/auth/validate", func(c *gin.Context) {
		// Token comes from the bearer header, or the body for clients
		// that introspect a stored token without sending it as auth.
		token := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		} else {
			var req struct {
				Token string `json:"token"`
			}
			if err := c.ShouldBindJSON(&req); err == nil {
				token = req.Token
			}
		}
		if token == "" {
			c.JSON(http.StatusOK, gin.H{"valid": false, "error": "No token provided"})
			return
		}

		claims, err := codec.ValidateToken(token)
		if err != nil {
			reason := "Invalid token"
			if errors.Is(err, ErrTokenExpired) {
				reason = "Token expired"
			}
			c.JSON(http.StatusOK, gin.H{"valid": false, "error": reason})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"valid":     true,
			"username":  claims.Username,
			"expiresAt": claims.ExpiresAt.UnixMilli(),
		})
	})

	api.GET("/auth/me", func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respondError(c, http.StatusUnauthorized, "No authorization header")
			return
		}
		claims, err := codec.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				respondError(c, http.StatusUnauthorized, "Token expired")
				return
			}
			respondError(c, http.StatusUnauthorized, "Invalid token")
			return
		}
		admin, err := adminRepo.FindByUsername(c.Request.Context(), claims.Username)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				respondError(c, http.StatusUnauthorized, "Admin not found")
				return
			}
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": admin.Username, "name": admin.Name})
	})

	// ---- events ----

	api.GET("/events", func(c *gin.Context) {
		events, err := eventRepo.List(c.Request.Context(), "date", "desc")
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, events)
	})

	api.GET("/events/sorted", func(c *gin.Context) {
		events, err := eventRepo.List(c.Request.Context(), c.Query("sort"), c.Query("order"))
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, events)
	})

	api.GET("/events/recent", func(c *gin.Context) {
		events, err := eventRepo.Recent(c.Request.Context(), 10)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, events)
	})

	api.GET("/events/:id", func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid event id")
			return
		}
		event, err := eventRepo.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				respondError(c, http.StatusNotFound, "Event not found")
				return
			}
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, event)
	})

	api.POST("/events", func(c *gin.Context) {
		ctx := c.Request.Context()

		title := strings.TrimSpace(c.PostForm("title"))
		date := strings.TrimSpace(c.PostForm("date"))
		if title == "" || date == "" {
			respondError(c, http.StatusBadRequest, "Title and date are required")
			return
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid date format")
			return
		}

		event := &Event{
			Title:          title,
			Date:           date,
			Description:    c.PostForm("description"),
			Highlights:     c.PostForm("highlights"),
			OrganizerNotes: c.PostForm("organizerNotes"),
			Location:       c.PostForm("location"),
			Featured:       c.PostForm("featured") == "true",
			Descriptions:   []DescriptionSection{},
		}
		if raw := c.PostForm("descriptions"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &event.Descriptions); err != nil {
				respondError(c, http.StatusBadRequest, "Invalid descriptions")
				return
			}
		}

		if name := strings.TrimSpace(c.PostForm("category")); name != "" {
			emoji := c.PostForm("categoryEmoji")
			if emoji == "" {
				emoji = "🎉"
			}
			cat, err := categoryRepo.FindOrCreate(ctx, name, emoji)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "Internal server error")
				return
			}
			event.Category = cat
		}

		id, err := eventRepo.Create(ctx, event)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}

		if form, err := c.MultipartForm(); err == nil && form != nil {
			if err := uploadEventImages(ctx, storage, eventRepo, id, form.File["images"], 0); err != nil {
				respondError(c, http.StatusInternalServerError, "Failed to upload image")
				return
			}
		}

		created, err := eventRepo.Get(ctx, id)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		notifier.EventCreated(ctx, id, title)
		c.JSON(http.StatusCreated, created)
	})

	api.PUT("/events/:id", func(c *gin.Context) {
		ctx := c.Request.Context()
		id, err := parseID(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid event id")
			return
		}
		existing, err := eventRepo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				respondError(c, http.StatusNotFound, "Event not found")
				return
			}
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}

		raw := c.PostForm("eventData")
		if raw == "" {
			respondError(c, http.StatusBadRequest, "Missing eventData")
			return
		}
		var payload struct {
			Title          string               `json:"title"`
			Category       *Category            `json:"category"`
			Date           string               `json:"date"`
			Description    string               `json:"description"`
			Highlights     string               `json:"highlights"`
			OrganizerNotes string               `json:"organizerNotes"`
			Location       string               `json:"location"`
			Descriptions   []DescriptionSection `json:"descriptions"`
			Images         []EventImage         `json:"images"`
			Featured       bool                 `json:"featured"`
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid eventData")
			return
		}
		if strings.TrimSpace(payload.Title) == "" || strings.TrimSpace(payload.Date) == "" {
			respondError(c, http.StatusBadRequest, "Title and date are required")
			return
		}
		if _, err := time.Parse("2006-01-02", payload.Date); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid date format")
			return
		}

		event := &Event{
			ID:             id,
			Title:          payload.Title,
			Date:           payload.Date,
			Description:    payload.Description,
			Highlights:     payload.Highlights,
			OrganizerNotes: payload.OrganizerNotes,
			Location:       payload.Location,
			Descriptions:   payload.Descriptions,
			Featured:       payload.Featured,
		}
		if payload.Category != nil && payload.Category.Name != "" {
			emoji := payload.Category.Emoji
			if emoji == "" {
				emoji = "🎉"
			}
			cat, err := categoryRepo.FindOrCreate(ctx, payload.Category.Name, emoji)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "Internal server error")
				return
			}
			event.Category = cat
		}

		if err := eventRepo.Update(ctx, event); err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}

		nextOrder, err := reconcileEventImages(ctx, eventRepo, id, payload.Images)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		if form, err := c.MultipartForm(); err == nil && form != nil {
			if err := uploadEventImages(ctx, storage, eventRepo, id, form.File["newImages"], nextOrder); err != nil {
				respondError(c, http.StatusInternalServerError, "Failed to upload image")
				return
			}
		}

		updated, err := eventRepo.Get(ctx, id)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		if existing.Featured != payload.Featured {
			notifier.EventFeatured(ctx, id, payload.Title, payload.Featured)
		} else {
			notifier.EventUpdated(ctx, id, payload.Title)
		}
		c.JSON(http.StatusOK, updated)
	})

	api.DELETE("/events/:id", func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid event id")
			return
		}
		if err := eventRepo.Delete(c.Request.Context(), id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				respondError(c, http.StatusNotFound, "Event not found")
				return
			}
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.Status(http.StatusNoContent)
	})

	// ---- event feedback ----

	api.GET("/events/:id/feedback", func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid event id")
			return
		}
		items, err := feedbackRepo.ListByEvent(c.Request.Context(), id)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, items)
	})

	api.POST("/events/:id/feedback", func(c *gin.Context) {
		ctx := c.Request.Context()
		id, err := parseID(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid event id")
			return
		}
		event, err := eventRepo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				respondError(c, http.StatusNotFound, "Event not found")
				return
			}
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}

		var req struct {
			Author  string `json:"author"`
			Message string `json:"message"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
			respondError(c, http.StatusBadRequest, "Message is required")
			return
		}

		fb := &Feedback{EventID: id, Author: strings.TrimSpace(req.Author), Message: req.Message}
		if _, err := feedbackRepo.Create(ctx, fb); err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		notifier.FeedbackReceived(ctx, id, event.Title, fb.Author, fb.Message)
		c.JSON(http.StatusCreated, fb)
	})

	api.GET("/feedbacks/recent", func(c *gin.Context) {
		items, err := feedbackRepo.Recent(c.Request.Context(), 10)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, items)
	})

	api.DELETE("/feedbacks/:id", func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid feedback id")
			return
		}
		if err := feedbackRepo.Delete(c.Request.Context(), id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				respondError(c, http.StatusNotFound, "Feedback not found")
				return
			}
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.Status(http.StatusNoContent)
	})

	// ---- categories ----

	api.GET("/categories", func(c *gin.Context) {
		cats, err := categoryRepo.List(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, cats)
	})

	api.POST("/categories", func(c *gin.Context) {
		var req struct {
			Name  string `json:"name"`
			Emoji string `json:"emoji"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Emoji) == "" {
			respondError(c, http.StatusBadRequest, "Name and emoji are required")
			return
		}
		ctx := c.Request.Context()
		if _, err := categoryRepo.FindByName(ctx, req.Name); err == nil {
			respondError(c, http.StatusBadRequest, "Category already exists")
			return
		} else if !errors.Is(err, pgx.ErrNoRows) {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		cat, err := categoryRepo.Create(ctx, strings.TrimSpace(req.Name), strings.TrimSpace(req.Emoji))
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusCreated, cat)
	})

	// ---- offerings ----

	api.GET("/offerings", func(c *gin.Context) {
		items, err := offeringRepo.List(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, items)
	})

	api.GET("/offerings/sorted", func(c *gin.Context) {
		sortKey := offeringSortKey(c.Query("sort"), c.Query("order"))
		items, err := offeringRepo.Search(c.Request.Context(), OfferingSearch{Sort: sortKey})
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, items)
	})

	api.GET("/offerings/search", func(c *gin.Context) {
		search := OfferingSearch{
			Query: c.Query("search"),
			Sort:  c.Query("sort"),
		}
		// priceRange is "min-max"; an open upper bound arrives as "500+".
		if pr := c.Query("priceRange"); pr != "" {
			parts := strings.SplitN(strings.TrimSuffix(pr, "+"), "-", 2)
			search.MinPrice, _ = strconv.ParseFloat(parts[0], 64)
			if len(parts) == 2 {
				search.MaxPrice, _ = strconv.ParseFloat(parts[1], 64)
			}
		}
		if cid := c.Query("category"); cid != "" {
			search.Category, _ = strconv.ParseInt(cid, 10, 64)
		}
		items, err := offeringRepo.Search(c.Request.Context(), search)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, items)
	})

	api.GET("/offerings/by-main-category", func(c *gin.Context) {
		ctx := c.Request.Context()
		var cid int64
		switch {
		case c.Query("categoryId") != "":
			id, err := parseID(c.Query("categoryId"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "Invalid category id")
				return
			}
			cid = id
		case c.Query("category") != "":
			cat, err := categoryRepo.FindByName(ctx, c.Query("category"))
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					respondError(c, http.StatusNotFound, "Category not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "Internal server error")
				return
			}
			cid = cat.ID
		default:
			respondError(c, http.StatusBadRequest, "Category is required")
			return
		}
		items, err := offeringRepo.ByMainCategory(ctx, cid)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, items)
	})

	api.GET("/offerings/categories-with-count", func(c *gin.Context) {
		items, err := offeringRepo.CategoriesWithCount(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, items)
	})

	api.GET("/offerings/grouped-by-main-category", func(c *gin.Context) {
		offerings, err := offeringRepo.List(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, groupOfferingsByMainCategory(offerings))
	})

	api.GET("/offerings/:id", func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid offering id")
			return
		}
		o, err := offeringRepo.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				respondError(c, http.StatusNotFound, "Offering not found")
				return
			}
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, o)
	})

	api.POST("/offerings", func(c *gin.Context) {
		ctx := c.Request.Context()
		o, categoryIDs, status, msg := bindOffering(c, storage, 0)
		if msg != "" {
			respondError(c, status, msg)
			return
		}
		id, err := offeringRepo.Create(ctx, o, categoryIDs)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		created, err := offeringRepo.Get(ctx, id)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	api.PUT("/offerings/:id", func(c *gin.Context) {
		ctx := c.Request.Context()
		id, err := parseID(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid offering id")
			return
		}
		existing, err := offeringRepo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				respondError(c, http.StatusNotFound, "Offering not found")
				return
			}
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}

		o, categoryIDs, status, msg := bindOffering(c, storage, id)
		if msg != "" {
			respondError(c, status, msg)
			return
		}
		if o.DecorationImageURL == "" {
			o.DecorationImageURL = existing.DecorationImageURL
		}
		if err := offeringRepo.Update(ctx, o, categoryIDs); err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		updated, err := offeringRepo.Get(ctx, id)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, updated)
	})

	api.DELETE("/offerings/:id", func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid offering id")
			return
		}
		if err := offeringRepo.Delete(c.Request.Context(), id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				respondError(c, http.StatusNotFound, "Offering not found")
				return
			}
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.Status(http.StatusNoContent)
	})

	// ---- global discount ----

	api.GET("/settings/global-discount", func(c *gin.Context) {
		pct, err := settingRepo.GlobalDiscount(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"percentage": pct})
	})

	api.POST("/settings/global-discount", func(c *gin.Context) {
		var req struct {
			Percentage float64 `json:"percentage"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request")
			return
		}
		if req.Percentage < 0 || req.Percentage > 100 {
			respondError(c, http.StatusBadRequest, "Discount must be between 0 and 100")
			return
		}
		if err := settingRepo.SetGlobalDiscount(c.Request.Context(), req.Percentage); err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"percentage": req.Percentage})
	})

	// ---- offering requests (leads) ----

	api.POST("/requests", func(c *gin.Context) {
		ctx := c.Request.Context()
		var req struct {
			Name       string `json:"name"`
			Contact    string `json:"contact"`
			Message    string `json:"message"`
			OfferingID int64  `json:"offeringId"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request")
			return
		}
		if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Contact) == "" {
			respondError(c, http.StatusBadRequest, "Name and contact are required")
			return
		}

		lead := &OfferingRequest{
			Name:       strings.TrimSpace(req.Name),
			Contact:    strings.TrimSpace(req.Contact),
			Message:    req.Message,
			OfferingID: req.OfferingID,
		}
		if o, err := offeringRepo.Get(ctx, req.OfferingID); err == nil {
			lead.OfferingTitle = o.Title
		}
		if _, err := offeringReqRepo.Create(ctx, lead); err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		notifier.OfferingLead(ctx, lead)
		c.JSON(http.StatusCreated, lead)
	})

	api.GET("/requests", func(c *gin.Context) {
		items, err := offeringReqRepo.List(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, items)
	})

	api.GET("/requests/unviewed-count", func(c *gin.Context) {
		n, err := offeringReqRepo.UnviewedCount(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n})
	})

	api.PUT("/requests/:id/viewed", func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request id")
			return
		}
		if err := offeringReqRepo.MarkViewed(c.Request.Context(), id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				respondError(c, http.StatusNotFound, "Request not found")
				return
			}
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.DELETE("/requests/:id", func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request id")
			return
		}
		if err := offeringReqRepo.Delete(c.Request.Context(), id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				respondError(c, http.StatusNotFound, "Request not found")
				return
			}
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.Status(http.StatusNoContent)
	})

	// ---- event requests (leads) ----

	api.POST("/event-requests", func(c *gin.Context) {
		ctx := c.Request.Context()
		var req struct {
			Name        string `json:"name"`
			Email       string `json:"email"`
			Phone       string `json:"phone"`
			Message     string `json:"message"`
			EventID     *int64 `json:"eventId"`
			RequestType string `json:"requestType"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request")
			return
		}
		if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Phone) == "" {
			respondError(c, http.StatusBadRequest, "Name and phone are required")
			return
		}
		requestType := req.RequestType
		if requestType == "" {
			requestType = "general"
			if req.EventID != nil {
				requestType = "event"
			}
		}

		lead := &EventRequest{
			Name:        strings.TrimSpace(req.Name),
			Email:       strings.TrimSpace(req.Email),
			Phone:       strings.TrimSpace(req.Phone),
			Message:     req.Message,
			EventID:     req.EventID,
			RequestType: requestType,
		}
		if req.EventID != nil {
			if e, err := eventRepo.Get(ctx, *req.EventID); err == nil {
				lead.EventTitle = e.Title
			}
		}
		if _, err := eventReqRepo.Create(ctx, lead); err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		notifier.EventLead(ctx, lead)
		c.JSON(http.StatusCreated, lead)
	})

	api.GET("/event-requests", func(c *gin.Context) {
		items, err := eventReqRepo.List(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, items)
	})

	api.GET("/event-requests/unviewed-count", func(c *gin.Context) {
		n, err := eventReqRepo.UnviewedCount(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n})
	})

	api.PUT("/event-requests/:id/viewed", func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request id")
			return
		}
		if err := eventReqRepo.MarkViewed(c.Request.Context(), id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				respondError(c, http.StatusNotFound, "Request not found")
				return
			}
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.DELETE("/event-requests/:id", func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request id")
			return
		}
		if err := eventReqRepo.Delete(c.Request.Context(), id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				respondError(c, http.StatusNotFound, "Request not found")
				return
			}
			respondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.Status(http.StatusNoContent)
	})

	// ---- admin ----

	admin := api.Group("/admin", AdminOnly())
	{
		admin.GET("/notifications/status", func(c *gin.Context) {
			queue, workers, err := metricsService.Overview(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "Internal server error")
				return
			}
			if workers == nil {
				workers = []WorkerHeartbeat{}
			}
			c.JSON(http.StatusOK, gin.H{"queue": queue, "workers": workers})
		})
	}

	return r
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// reconcileEventImages applies the image set submitted with an event
// update: rows the form kept stay with their new order, everything
// else goes. Every order write is scoped to the event, so an image id
// belonging to another event cannot be moved through this path. The
// returned order is where freshly uploaded images start.
func reconcileEventImages(ctx context.Context, repo EventRepository, eventID int64, images []EventImage) (int, error) {
	keepIDs := make([]int64, 0, len(images))
	maxOrder := -1
	for _, img := range images {
		keepIDs = append(keepIDs, img.ID)
		if img.Order > maxOrder {
			maxOrder = img.Order
		}
	}
	if err := repo.DeleteImagesExcept(ctx, eventID, keepIDs); err != nil {
		return 0, err
	}
	for _, img := range images {
		if err := repo.SetImageOrder(ctx, eventID, img.ID, img.Order); err != nil {
			return 0, err
		}
	}
	return maxOrder + 1, nil
}

// uploadEventImages compresses and stores each file, then records the
// image rows starting at startOrder.
func uploadEventImages(ctx context.Context, storage StorageClient, repo EventRepository,
	eventID int64, files []*multipart.FileHeader, startOrder int) error {
	for i, fh := range files {
		url, err := uploadImageFile(ctx, storage, fmt.Sprintf("events/%d", eventID), fh)
		if err != nil {
			return err
		}
		if _, err := repo.AddImage(ctx, eventID, url, startOrder+i); err != nil {
			return err
		}
	}
	return nil
}

func uploadImageFile(ctx context.Context, storage StorageClient, prefix string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := CompressImage(f)
	if err != nil {
		return "", err
	}
	path := fmt.Sprintf("%s/%s.jpg", prefix, uuid.NewString())
	url, err := storage.UploadImage(ctx, path, data)
	if err != nil {
		log.Printf("storage upload failed for %s: %v", fh.Filename, err)
		return "", err
	}
	return url, nil
}

// bindOffering reads an offering from either a JSON body or a multipart
// form (the admin form sends multipart when it includes a new
// decoration image). Returns a non-empty message on validation failure.
func bindOffering(c *gin.Context, storage StorageClient, id int64) (*Offering, []int64, int, string) {
	ct := c.ContentType()
	o := &Offering{ID: id}
	var categoryIDs []int64

	if strings.HasPrefix(ct, "multipart/form-data") {
		price, err := strconv.ParseFloat(c.PostForm("approximatePrice"), 64)
		if err != nil {
			return nil, nil, http.StatusBadRequest, "Invalid price"
		}
		o.Title = strings.TrimSpace(c.PostForm("title"))
		o.ApproximatePrice = price
		o.Description = c.PostForm("description")
		o.Inclusions = c.PostForm("inclusions")
		o.DiscountType = c.PostForm("discountType")
		if v := c.PostForm("specificDiscountedPrice"); v != "" {
			if p, err := strconv.ParseFloat(v, 64); err == nil {
				o.SpecificDiscountedPrice = &p
			}
		}
		if v := c.PostForm("mainCategoryId"); v != "" {
			if cid, err := strconv.ParseInt(v, 10, 64); err == nil {
				o.MainCategory = &Category{ID: cid}
			}
		}
		if v := c.PostForm("categoryIds"); v != "" {
			for _, part := range strings.Split(v, ",") {
				if cid, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
					categoryIDs = append(categoryIDs, cid)
				}
			}
		}
		if fh, err := c.FormFile("decorationImage"); err == nil {
			url, err := uploadImageFile(c.Request.Context(), storage, "offerings", fh)
			if err != nil {
				return nil, nil, http.StatusInternalServerError, "Failed to upload image"
			}
			o.DecorationImageURL = url
		}
	} else {
		var req struct {
			Title                   string     `json:"title"`
			DecorationImageURL      string     `json:"decorationImageUrl"`
			ApproximatePrice        float64    `json:"approximatePrice"`
			Description             string     `json:"description"`
			Inclusions              string     `json:"inclusions"`
			Categories              []Category `json:"categories"`
			MainCategory            *Category  `json:"mainCategory"`
			DiscountType            string     `json:"discountType"`
			SpecificDiscountedPrice *float64   `json:"specificDiscountedPrice"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, nil, http.StatusBadRequest, "Invalid request"
		}
		o.Title = strings.TrimSpace(req.Title)
		o.DecorationImageURL = req.DecorationImageURL
		o.ApproximatePrice = req.ApproximatePrice
		o.Description = req.Description
		o.Inclusions = req.Inclusions
		o.MainCategory = req.MainCategory
		o.DiscountType = req.DiscountType
		o.SpecificDiscountedPrice = req.SpecificDiscountedPrice
		for _, cat := range req.Categories {
			categoryIDs = append(categoryIDs, cat.ID)
		}
	}

	if o.Title == "" {
		return nil, nil, http.StatusBadRequest, "Title is required"
	}
	if o.ApproximatePrice < 0 {
		return nil, nil, http.StatusBadRequest, "Invalid price"
	}
	switch o.DiscountType {
	case "", DiscountGlobal, DiscountSpecial:
	default:
		return nil, nil, http.StatusBadRequest, "Invalid discount type"
	}
	return o, categoryIDs, 0, ""
}

// offeringSortKey maps a sort/order query pair onto the repository's
// sort tokens. Unknown fields fall back to newest first.
func offeringSortKey(field, order string) string {
	desc := strings.EqualFold(order, "desc")
	switch field {
	case "price", "approximatePrice":
		if desc {
			return "price-desc"
		}
		return "price-asc"
	case "title":
		if desc {
			return "title-desc"
		}
		return "title"
	case "id":
		if strings.EqualFold(order, "asc") {
			return "id-asc"
		}
		return ""
	}
	return ""
}

// OfferingGroup is one main category with its offerings, largest group
// first in the grouped listing.
type OfferingGroup struct {
	Category  *Category  `json:"category"`
	Offerings []Offering `json:"offerings"`
}

func groupOfferingsByMainCategory(offerings []Offering) []OfferingGroup {
	order := []int64{}
	groups := map[int64]*OfferingGroup{}
	for _, o := range offerings {
		var key int64
		var cat *Category
		if o.MainCategory != nil {
			key = o.MainCategory.ID
			cat = o.MainCategory
		}
		g, ok := groups[key]
		if !ok {
			g = &OfferingGroup{Category: cat, Offerings: []Offering{}}
			groups[key] = g
			order = append(order, key)
		}
		g.Offerings = append(g.Offerings, o)
	}

	out := make([]OfferingGroup, 0, len(groups))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	// Largest groups first; ties keep first-seen order.
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Offerings) > len(out[j].Offerings)
	})
	return out
}
