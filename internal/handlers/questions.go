package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/stackit/backend/internal/forum"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

type QuestionHandler struct {
	db     *gorm.DB
	ledger *forum.Ledger
	views  forum.ViewTracker
	log    *zap.SugaredLogger
}

func NewQuestionHandler(db *gorm.DB, ledger *forum.Ledger, views forum.ViewTracker, log *zap.SugaredLogger) *QuestionHandler {
	return &QuestionHandler{db: db, ledger: ledger, views: views, log: log}
}

type tagRef struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type questionRow struct {
	ID               uint            `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	UserID           uint            `json:"user_id"`
	AcceptedAnswerID *uint           `json:"accepted_answer_id"`
	Views            int             `json:"views"`
	Votes            int             `json:"votes"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Author           string          `json:"author"`
	AuthorAvatar     string          `json:"author_avatar"`
	AnswerCount      int64           `json:"answer_count"`
	Tags             []tagRef        `json:"tags" gorm:"-"`
	UserVote         forum.VoteState `json:"userVote" gorm:"-"`
}

type answerRow struct {
	ID           uint            `json:"id"`
	Content      string          `json:"content"`
	QuestionID   uint            `json:"question_id"`
	UserID       uint            `json:"user_id"`
	Votes        int             `json:"votes"`
	IsAccepted   bool            `json:"is_accepted"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Author       string          `json:"author"`
	AuthorAvatar string          `json:"author_avatar"`
	UserVote     forum.VoteState `json:"userVote" gorm:"-"`
}

const questionColumns = "q.id, q.title, q.description, q.user_id, q.accepted_answer_id, q.views, q.votes, " +
	"q.created_at, q.updated_at, u.username AS author, u.avatar AS author_avatar, " +
	"(SELECT COUNT(*) FROM answers a WHERE a.question_id = q.id) AS answer_count"

var questionOrders = map[string]string{
	"newest":     "q.created_at DESC, q.id DESC",
	"oldest":     "q.created_at ASC, q.id ASC",
	"votes":      "q.votes DESC, q.created_at DESC",
	"views":      "q.views DESC, q.created_at DESC",
	"unanswered": "q.created_at DESC, q.id DESC",
}

// ListQuestions returns a page of questions filtered by search text and
// tag.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	p := parsePage(c, 10)
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))
	tag := strings.ToLower(strings.TrimSpace(c.Query("tag")))
	sort := c.DefaultQuery("sort", "newest")
	order, ok := questionOrders[sort]
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid sort option")
		return
	}

	filter := func(tx *gorm.DB) *gorm.DB {
		if search != "" {
			like := "%" + search + "%"
			tx = tx.Where("(LOWER(q.title) LIKE ? OR LOWER(q.description) LIKE ? OR EXISTS ("+
				"SELECT 1 FROM question_tags qt JOIN tags t ON t.id = qt.tag_id "+
				"WHERE qt.question_id = q.id AND LOWER(t.name) LIKE ?))", like, like, like)
		}
		if tag != "" {
			tx = tx.Where("EXISTS (SELECT 1 FROM question_tags qt JOIN tags t ON t.id = qt.tag_id "+
				"WHERE qt.question_id = q.id AND t.name = ?)", tag)
		}
		if sort == "unanswered" {
			tx = tx.Where("NOT EXISTS (SELECT 1 FROM answers a WHERE a.question_id = q.id)")
		}
		return tx
	}

	ctx := c.Request.Context()
	var total int64
	if err := h.db.WithContext(ctx).Table("questions AS q").Scopes(filter).Count(&total).Error; err != nil {
		respondDBError(c, h.log, "count questions", err)
		return
	}

	questions := []questionRow{}
	err := h.db.WithContext(ctx).Table("questions AS q").
		Select(questionColumns).
		Joins("LEFT JOIN users u ON u.id = q.user_id").
		Scopes(filter).
		Order(order).
		Limit(p.Limit).Offset(p.Offset()).
		Scan(&questions).Error
	if err != nil {
		respondDBError(c, h.log, "list questions", err)
		return
	}
	if err := h.attachTags(c, questions); err != nil {
		respondDBError(c, h.log, "load question tags", err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"questions":  questions,
		"pagination": p.Pagination(total),
	})
}

func (h *QuestionHandler) attachTags(c *gin.Context, questions []questionRow) error {
	if len(questions) == 0 {
		return nil
	}
	ids := make([]uint, len(questions))
	index := make(map[uint]int, len(questions))
	for i := range questions {
		ids[i] = questions[i].ID
		index[questions[i].ID] = i
		questions[i].Tags = []tagRef{}
	}

	var links []struct {
		QuestionID uint
		Name       string
		Color      string
	}
	err := h.db.WithContext(c.Request.Context()).Table("question_tags AS qt").
		Select("qt.question_id, t.name, t.color").
		Joins("JOIN tags t ON t.id = qt.tag_id").
		Where("qt.question_id IN ?", ids).
		Order("t.name").
		Scan(&links).Error
	if err != nil {
		return err
	}
	for _, l := range links {
		q := &questions[index[l.QuestionID]]
		q.Tags = append(q.Tags, tagRef{Name: l.Name, Color: l.Color})
	}
	return nil
}

// GetQuestion returns a question with its answers. Repeat views from the
// same client inside the de-duplication window are not counted.
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var question questionRow
	q := h.db.WithContext(ctx).Table("questions AS q").
		Select(questionColumns).
		Joins("LEFT JOIN users u ON u.id = q.user_id").
		Where("q.id = ?", id).
		Limit(1).
		Scan(&question)
	if q.Error != nil {
		respondDBError(c, h.log, "load question", q.Error)
		return
	}
	if q.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "Question not found")
		return
	}

	userID := currentUserID(c)
	count, err := h.views.ShouldCount(ctx, forum.ViewKey(c.ClientIP(), userID, id))
	if err != nil {
		h.log.Warnw("view tracker failed", "question_id", id, "error", err)
	}
	if count {
		err := h.db.WithContext(ctx).Model(&models.Question{}).Where("id = ?", id).
			UpdateColumn("views", gorm.Expr("views + 1")).Error
		if err != nil {
			h.log.Warnw("failed to count view", "question_id", id, "error", err)
		} else {
			question.Views++
		}
	}

	answers := []answerRow{}
	err = h.db.WithContext(ctx).Table("answers AS a").
		Select("a.id, a.content, a.question_id, a.user_id, a.votes, a.is_accepted, a.created_at, a.updated_at, "+
			"u.username AS author, u.avatar AS author_avatar").
		Joins("LEFT JOIN users u ON u.id = a.user_id").
		Where("a.question_id = ?", id).
		Order("a.is_accepted DESC, a.votes DESC, a.created_at ASC, a.id ASC").
		Scan(&answers).Error
	if err != nil {
		respondDBError(c, h.log, "load answers", err)
		return
	}

	rows := []questionRow{question}
	if err := h.attachTags(c, rows); err != nil {
		respondDBError(c, h.log, "load question tags", err)
		return
	}
	question = rows[0]

	if userID != 0 {
		if err := h.attachUserVotes(c, userID, &question, answers); err != nil {
			respondServiceError(c, h.log, err)
			return
		}
	}

	respondOK(c, http.StatusOK, gin.H{
		"question": gin.H{
			"id":                 question.ID,
			"title":              question.Title,
			"description":        question.Description,
			"user_id":            question.UserID,
			"accepted_answer_id": question.AcceptedAnswerID,
			"views":              question.Views,
			"votes":              question.Votes,
			"created_at":         question.CreatedAt,
			"updated_at":         question.UpdatedAt,
			"author":             question.Author,
			"author_avatar":      question.AuthorAvatar,
			"answer_count":       len(answers),
			"tags":               question.Tags,
			"userVote":           question.UserVote,
			"answers":            answers,
		},
	})
}

func (h *QuestionHandler) attachUserVotes(c *gin.Context, userID uint, question *questionRow, answers []answerRow) error {
	ctx := c.Request.Context()
	qv, err := h.ledger.UserVotes(ctx, userID, forum.KindQuestion, []uint{question.ID})
	if err != nil {
		return err
	}
	question.UserVote = qv[question.ID]

	ids := make([]uint, len(answers))
	for i := range answers {
		ids[i] = answers[i].ID
	}
	av, err := h.ledger.UserVotes(ctx, userID, forum.KindAnswer, ids)
	if err != nil {
		return err
	}
	for i := range answers {
		answers[i].UserVote = av[answers[i].ID]
	}
	return nil
}

// CreateQuestion stores a question and links its tags, creating tags
// that do not exist yet.
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var input models.CreateQuestionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	tags := normalizeTags(input.Tags)
	if len(tags) == 0 {
		respondError(c, http.StatusBadRequest, "Please select 1-5 tags")
		return
	}

	question := models.Question{
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		UserID:      currentUserID(c),
	}
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&question).Error; err != nil {
			return err
		}
		for _, name := range tags {
			tag := models.Tag{Name: name}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&tag).Error; err != nil {
				return err
			}
			if err := tx.Where("name = ?", name).Take(&tag).Error; err != nil {
				return err
			}
			link := models.QuestionTag{QuestionID: question.ID, TagID: tag.ID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		respondDBError(c, h.log, "create question", err)
		return
	}

	h.log.Infow("question created", "question_id", question.ID, "user_id", question.UserID, "tags", tags)
	respondOK(c, http.StatusCreated, gin.H{"questionId": question.ID})
}

func normalizeTags(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// VoteQuestion toggles or switches the caller's vote on a question.
func (h *QuestionHandler) VoteQuestion(c *gin.Context) {
	castVote(c, h.ledger, h.log, forum.KindQuestion)
}

func castVote(c *gin.Context, ledger *forum.Ledger, log *zap.SugaredLogger, kind forum.TargetKind) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input models.VoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	direction, err := forum.ParseDirection(input.Type)
	if err != nil {
		respondServiceError(c, log, err)
		return
	}

	res, err := ledger.CastVote(c.Request.Context(), currentUserID(c), id, kind, direction)
	if err != nil {
		if !errors.Is(err, forum.ErrUnavailable) {
			log.Debugw("vote rejected", "kind", kind, "target_id", id, "error", err)
		}
		respondServiceError(c, log, err)
		return
	}
	respondOK(c, http.StatusOK, res)
}
