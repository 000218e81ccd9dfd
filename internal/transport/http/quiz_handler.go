package http

import (
	"net/http"
	"strconv"

	"quizit-service/internal/app"
	"quizit-service/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// QuizHandler serves quiz listing and the admin endpoints.
type QuizHandler struct {
	admin   *app.QuizAdmin
	results *app.ResultsService
	log     *zap.Logger
}

func NewQuizHandler(admin *app.QuizAdmin, results *app.ResultsService, log *zap.Logger) *QuizHandler {
	return &QuizHandler{admin: admin, results: results, log: log}
}

func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	quizzes, err := h.admin.ListQuizzes(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quizzes": quizzes})
}

func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	var quiz domain.Quiz
	if err := c.ShouldBindJSON(&quiz); err != nil {
		writeBindError(c, err)
		return
	}
	created, err := h.admin.CreateQuiz(c.Request.Context(), quiz)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	report, err := h.admin.DeleteQuiz(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetResults reads ?page and ?limit; malformed values fall back to the defaults.
func (h *QuizHandler) GetResults(c *gin.Context) {
	page := domain.Page{
		Number: queryInt(c, "page"),
		Size:   queryInt(c, "limit"),
	}
	results, err := h.results.GetResults(c.Request.Context(), c.Param("id"), page)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func queryInt(c *gin.Context, name string) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return v
}
