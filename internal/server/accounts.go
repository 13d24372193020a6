package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Angel050521/MiFiadoFinal/fiadosync"
)

// Store is the store-access capability the account handlers need. Both
// *pgxpool.Pool and test doubles satisfy it.
type Store interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountHandlers covers the low-risk collaborators around the sync core:
// registration, login (password-equality check returning a bearer token),
// subscription bookkeeping, and plan updates.
type AccountHandlers struct {
	store  Store
	tokens *fiadosync.TokenAuth
	logger *slog.Logger
}

func NewAccountHandlers(store Store, tokens *fiadosync.TokenAuth, logger *slog.Logger) *AccountHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountHandlers{store: store, tokens: tokens, logger: logger}
}

type registerRequest struct {
	Nombre      string `json:"nombre"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Dispositivo string `json:"dispositivo"`
}

// HandleRegister creates a new account on the free plan.
func (h *AccountHandlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, fiadosync.ErrorResponse{Error: "Cuerpo de la petición inválido"})
		return
	}

	if missing := missingFields(map[string]string{
		"nombre":   req.Nombre,
		"email":    req.Email,
		"password": req.Password,
	}); len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, fiadosync.ErrorResponse{
			Error: "Faltan campos requeridos: " + strings.Join(missing, ", "),
		})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	dispositivo := req.Dispositivo
	if dispositivo == "" {
		dispositivo = "unknown"
	}

	var exists bool
	if err := h.store.QueryRow(r.Context(),
		`SELECT EXISTS (SELECT 1 FROM usuarios WHERE email = $1)`, email).Scan(&exists); err != nil {
		h.logger.Error("Register existence check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, fiadosync.ErrorResponse{
			Error: "Error al registrar el usuario", Details: err.Error(),
		})
		return
	}
	if exists {
		writeJSON(w, http.StatusBadRequest, fiadosync.ErrorResponse{
			Error: "Ya existe un usuario con este correo",
		})
		return
	}

	var id int64
	err := h.store.QueryRow(r.Context(), `
		INSERT INTO usuarios (nombre, email, password, dispositivo, plan)
		VALUES ($1, $2, $3, $4, 'free')
		RETURNING id`,
		req.Nombre, email, req.Password, dispositivo).Scan(&id)
	if err != nil {
		h.logger.Error("Register insert failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, fiadosync.ErrorResponse{
			Error: "Error al registrar el usuario", Details: err.Error(),
		})
		return
	}

	h.logger.Info("User registered", "user_id", id)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Usuario registrado exitosamente",
		"id":      id,
	})
}

type loginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Dispositivo string `json:"dispositivo"`
}

// HandleLogin is a stateless password-equality check that returns a bearer
// token. When the request carries a device tag and the account is bound to a
// different one, access is denied.
func (h *AccountHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, fiadosync.ErrorResponse{Error: "Cuerpo de la petición inválido"})
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, fiadosync.ErrorResponse{
			Error: "Email y contraseña son requeridos",
		})
		return
	}

	var (
		id          int64
		nombre      string
		email       string
		plan        string
		dispositivo string
	)
	err := h.store.QueryRow(r.Context(), `
		SELECT id, nombre, email, plan, dispositivo
		FROM usuarios
		WHERE email = $1 AND password = $2
		LIMIT 1`,
		strings.ToLower(strings.TrimSpace(req.Email)), req.Password).
		Scan(&id, &nombre, &email, &plan, &dispositivo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Generic message: never reveal which check failed.
			writeJSON(w, http.StatusUnauthorized, fiadosync.ErrorResponse{Error: "Credenciales inválidas"})
			return
		}
		h.logger.Error("Login query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, fiadosync.ErrorResponse{Error: "Error en el inicio de sesión"})
		return
	}

	if req.Dispositivo != "" && dispositivo != "" && dispositivo != "unknown" && dispositivo != req.Dispositivo {
		writeJSON(w, http.StatusForbidden, fiadosync.ErrorResponse{Error: "Dispositivo no autorizado"})
		return
	}

	deviceID := req.Dispositivo
	if deviceID == "" {
		deviceID = "device-" + uuid.NewString()
	}

	token, err := h.tokens.GenerateToken(itoa(id), deviceID, 30*24*time.Hour)
	if err != nil {
		h.logger.Error("Token issue failed", "error", err, "user_id", id)
		writeJSON(w, http.StatusInternalServerError, fiadosync.ErrorResponse{Error: "Error en el inicio de sesión"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"id":      id,
		"nombre":  nombre,
		"email":   email,
		"plan":    plan,
		"token":   token,
	})
}

type subscriptionRequest struct {
	Plan             string `json:"plan"`
	FechaInicio      string `json:"fechaInicio"`
	FechaVencimiento string `json:"fechaVencimiento"`
	Estado           string `json:"estado"`
	TokenPago        string `json:"tokenPago"`
	IDUsuario        *int64 `json:"idUsuario"`
	Email            string `json:"email"`
	Dispositivo      string `json:"dispositivo"`
}

// HandleCreateSubscription inserts a subscription row.
func (h *AccountHandlers) HandleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, fiadosync.ErrorResponse{Error: "Cuerpo de la petición inválido"})
		return
	}

	if missing := missingFields(map[string]string{
		"plan":             req.Plan,
		"fechaInicio":      req.FechaInicio,
		"fechaVencimiento": req.FechaVencimiento,
		"estado":           req.Estado,
	}); len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, fiadosync.ErrorResponse{
			Error: "Faltan campos requeridos: " + strings.Join(missing, ", "),
		})
		return
	}

	dispositivo := req.Dispositivo
	if dispositivo == "" {
		dispositivo = "unknown"
	}

	_, err := h.store.Exec(r.Context(), `
		INSERT INTO suscripciones (plan, fecha_inicio, fecha_vencimiento, estado,
			token_pago, id_usuario, email, dispositivo)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8)`,
		req.Plan, req.FechaInicio, req.FechaVencimiento, req.Estado,
		req.TokenPago, req.IDUsuario, req.Email, dispositivo)
	if err != nil {
		h.logger.Error("Subscription insert failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, fiadosync.ErrorResponse{
			Error: "Error interno del servidor", Details: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Suscripción guardada",
	})
}

type subscriptionRow struct {
	ID               int64   `json:"id"`
	Plan             string  `json:"plan"`
	FechaInicio      string  `json:"fechaInicio"`
	FechaVencimiento string  `json:"fechaVencimiento"`
	Estado           string  `json:"estado"`
	TokenPago        *string `json:"tokenPago"`
	IDUsuario        *int64  `json:"idUsuario"`
	Email            *string `json:"email"`
	Dispositivo      string  `json:"dispositivo"`
}

// HandleGetSubscription returns the user's latest subscription.
func (h *AccountHandlers) HandleGetSubscription(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, fiadosync.ErrorResponse{Error: "Se requiere el parámetro userId"})
		return
	}

	rows, err := h.store.Query(r.Context(), `
		SELECT id, plan, fecha_inicio, fecha_vencimiento, estado,
		       token_pago, id_usuario, email, dispositivo
		FROM suscripciones
		WHERE id_usuario = $1::bigint
		ORDER BY fecha_vencimiento DESC
		LIMIT 1`, userID)
	if err != nil {
		h.logger.Error("Subscription query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, fiadosync.ErrorResponse{Error: "Error al consultar suscripciones"})
		return
	}
	defer rows.Close()

	results := []subscriptionRow{}
	for rows.Next() {
		var s subscriptionRow
		if err := rows.Scan(&s.ID, &s.Plan, &s.FechaInicio, &s.FechaVencimiento, &s.Estado,
			&s.TokenPago, &s.IDUsuario, &s.Email, &s.Dispositivo); err != nil {
			h.logger.Error("Subscription scan failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, fiadosync.ErrorResponse{Error: "Error al consultar suscripciones"})
			return
		}
		results = append(results, s)
	}
	if rows.Err() != nil {
		h.logger.Error("Subscription rows failed", "error", rows.Err())
		writeJSON(w, http.StatusInternalServerError, fiadosync.ErrorResponse{Error: "Error al consultar suscripciones"})
		return
	}

	writeJSON(w, http.StatusOK, results)
}

type updatePlanRequest struct {
	UserID *int64 `json:"userId"`
	Plan   string `json:"plan"`
}

// HandleUpdatePlan updates the confirmed plan for one user.
func (h *AccountHandlers) HandleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req updatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, fiadosync.ErrorResponse{Error: "Cuerpo de la petición inválido"})
		return
	}
	if req.UserID == nil || req.Plan == "" {
		writeJSON(w, http.StatusBadRequest, fiadosync.ErrorResponse{Error: "Se requieren userId y plan"})
		return
	}

	_, err := h.store.Exec(r.Context(),
		`UPDATE usuarios SET plan = $1 WHERE id = $2`, req.Plan, *req.UserID)
	if err != nil {
		h.logger.Error("Plan update failed", "error", err, "user_id", *req.UserID)
		writeJSON(w, http.StatusInternalServerError, fiadosync.ErrorResponse{
			Error: "Error al actualizar el plan", Details: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Plan actualizado correctamente",
	})
}

func missingFields(fields map[string]string) []string {
	// Stable order for the error message.
	order := []string{"nombre", "email", "password", "plan", "fechaInicio", "fechaVencimiento", "estado"}
	var missing []string
	for _, name := range order {
		if v, ok := fields[name]; ok && strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
