package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openforum/forum/config"
	"github.com/openforum/forum/middleware"
	"github.com/openforum/forum/models"
	"github.com/openforum/forum/schema"
	"github.com/openforum/forum/store"
	"github.com/openforum/forum/utils"
)

// ForumController serves topics, questions, responses and the records hanging off them.
type ForumController struct {
	store *store.Store
	cfg   config.AppConfig
}

// NewForumController creates a ForumController.
func NewForumController(st *store.Store, cfg config.AppConfig) *ForumController {
	return &ForumController{store: st, cfg: cfg}
}

type topicRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
}

type questionRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
}

type responseRequest struct {
	Description string `json:"description" binding:"required"`
}

type tagRequest struct {
	TaggedUserID uint `json:"tagged_user_id" binding:"required"`
}

type nominationRequest struct {
	NominatedUserID uint `json:"nominated_user_id" binding:"required"`
}

// visibleTopic loads a topic the caller may see. Unapproved topics are
// visible only to their author and administrators.
func (f *ForumController) visibleTopic(ctx *gin.Context, id, userID uint) (*models.Topic, bool) {
	topic, err := f.store.GetTopic(ctx.Request.Context(), id)
	if err != nil {
		respondStoreError(ctx, err, "load topic")
		return nil, false
	}
	if !topic.IsApproved && topic.AuthorID != userID && !middleware.IsAdmin(ctx, f.cfg) {
		utils.Error(ctx, http.StatusNotFound, 40400, "not found")
		return nil, false
	}
	return topic, true
}

// liveQuestion loads a question the caller may see: not soft-deleted, unless
// the caller is an administrator, and inside a topic visible to the caller.
func (f *ForumController) liveQuestion(ctx *gin.Context, id, userID uint) (*models.Question, bool) {
	question, err := f.store.GetQuestion(ctx.Request.Context(), id)
	if err != nil {
		respondStoreError(ctx, err, "load question")
		return nil, false
	}
	if question.IsDeleted && !middleware.IsAdmin(ctx, f.cfg) {
		utils.Error(ctx, http.StatusNotFound, 40400, "not found")
		return nil, false
	}
	if _, ok := f.visibleTopic(ctx, question.TopicID, userID); !ok {
		return nil, false
	}
	return question, true
}

// liveResponse is liveQuestion for responses, checked through their question.
func (f *ForumController) liveResponse(ctx *gin.Context, id, userID uint) (*models.Response, bool) {
	response, err := f.store.GetResponse(ctx.Request.Context(), id)
	if err != nil {
		respondStoreError(ctx, err, "load response")
		return nil, false
	}
	if response.IsDeleted && !middleware.IsAdmin(ctx, f.cfg) {
		utils.Error(ctx, http.StatusNotFound, 40400, "not found")
		return nil, false
	}
	if _, ok := f.liveQuestion(ctx, response.QuestionID, userID); !ok {
		return nil, false
	}
	return response, true
}

// ListTopics returns approved topics and the caller's own pending ones.
// Administrators see every topic.
func (f *ForumController) ListTopics(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}
	topics, err := f.store.ListTopics(ctx.Request.Context(), !middleware.IsAdmin(ctx, f.cfg), userID)
	if err != nil {
		respondStoreError(ctx, err, "list topics")
		return
	}
	utils.Success(ctx, topics)
}

// GetTopic returns a single topic.
func (f *ForumController) GetTopic(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	topic, ok := f.visibleTopic(ctx, id, userID)
	if !ok {
		return
	}
	utils.Success(ctx, topic)
}

// CreateTopic proposes a topic. It stays unapproved until an administrator approves it.
func (f *ForumController) CreateTopic(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}
	var req topicRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40011, "invalid request payload")
		return
	}

	title, ok := sanitizeTitle(ctx, req.Title)
	if !ok {
		return
	}

	topic := models.Topic{
		AuthorID:    userID,
		Title:       title,
		Description: utils.Sanitize(req.Description),
	}
	if err := f.store.CreateTopic(ctx.Request.Context(), &topic); err != nil {
		respondStoreError(ctx, err, "create topic")
		return
	}
	utils.Created(ctx, topic)
}

// ListQuestions returns the live questions of a topic.
func (f *ForumController) ListQuestions(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if _, ok := f.visibleTopic(ctx, id, userID); !ok {
		return
	}
	questions, err := f.store.ListQuestions(ctx.Request.Context(), id)
	if err != nil {
		respondStoreError(ctx, err, "list questions")
		return
	}
	utils.Success(ctx, questions)
}

// CreateQuestion asks a question inside a topic.
func (f *ForumController) CreateQuestion(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}
	topicID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req questionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40012, "invalid request payload")
		return
	}
	title, ok := sanitizeTitle(ctx, req.Title)
	if !ok {
		return
	}
	if _, ok := f.visibleTopic(ctx, topicID, userID); !ok {
		return
	}

	question := models.Question{
		AuthorID:    userID,
		TopicID:     topicID,
		Title:       title,
		Description: utils.Sanitize(req.Description),
	}
	if err := f.store.CreateQuestion(ctx.Request.Context(), &question); err != nil {
		respondStoreError(ctx, err, "create question")
		return
	}
	utils.Created(ctx, question)
}

// GetQuestion returns a question with its live responses.
func (f *ForumController) GetQuestion(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	question, ok := f.liveQuestion(ctx, id, userID)
	if !ok {
		return
	}
	responses, err := f.store.ListResponses(ctx.Request.Context(), id)
	if err != nil {
		respondStoreError(ctx, err, "list responses")
		return
	}
	utils.Success(ctx, gin.H{
		"question":  question,
		"responses": responses,
	})
}

// CreateResponse answers a question.
func (f *ForumController) CreateResponse(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}
	questionID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req responseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40013, "invalid request payload")
		return
	}
	if _, ok := f.liveQuestion(ctx, questionID, userID); !ok {
		return
	}

	response := models.Response{
		AuthorID:    userID,
		QuestionID:  questionID,
		Description: utils.Sanitize(req.Description),
	}
	if err := f.store.CreateResponse(ctx.Request.Context(), &response); err != nil {
		respondStoreError(ctx, err, "create response")
		return
	}
	utils.Created(ctx, response)
}

// UpvoteQuestion records an upvote by the caller. Repeated upvotes are stored as separate rows.
func (f *ForumController) UpvoteQuestion(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}
	questionID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if _, ok := f.liveQuestion(ctx, questionID, userID); !ok {
		return
	}

	vote := models.QuestionUpVote{AuthorID: userID, QuestionID: questionID}
	if err := f.store.CreateQuestionUpVote(ctx.Request.Context(), &vote); err != nil {
		respondStoreError(ctx, err, "upvote question")
		return
	}
	utils.Created(ctx, vote)
}

// TagUser tags another user within a question.
func (f *ForumController) TagUser(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}
	questionID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req tagRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40014, "invalid request payload")
		return
	}
	if _, ok := f.liveQuestion(ctx, questionID, userID); !ok {
		return
	}

	tag := models.Tag{AuthorID: userID, QuestionID: questionID, TaggedUserID: req.TaggedUserID}
	if err := f.store.CreateTag(ctx.Request.Context(), &tag); err != nil {
		respondStoreError(ctx, err, "tag user")
		return
	}
	utils.Created(ctx, tag)
}

// UpvoteResponse records an upvote of a response by the caller.
func (f *ForumController) UpvoteResponse(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}
	responseID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if _, ok := f.liveResponse(ctx, responseID, userID); !ok {
		return
	}

	vote := models.ResponseUpVote{AuthorID: userID, ResponseID: responseID}
	if err := f.store.CreateResponseUpVote(ctx.Request.Context(), &vote); err != nil {
		respondStoreError(ctx, err, "upvote response")
		return
	}
	utils.Created(ctx, vote)
}

// Nominate records the caller nominating another user.
func (f *ForumController) Nominate(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}
	var req nominationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40015, "invalid request payload")
		return
	}

	nomination := models.Nomination{AuthorID: userID, NominatedUserID: req.NominatedUserID}
	if err := f.store.CreateNomination(ctx.Request.Context(), &nomination); err != nil {
		respondStoreError(ctx, err, "nominate user")
		return
	}
	utils.Created(ctx, nomination)
}

// SoftDelete returns a handler marking a row of table as deleted. Only the
// row's author or an administrator may do so.
func (f *ForumController) SoftDelete(table string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID, ok := getUserID(ctx)
		if !ok {
			return
		}
		id, ok := parseID(ctx, "id")
		if !ok {
			return
		}
		author, err := f.store.AuthorOf(ctx.Request.Context(), table, id)
		if err != nil {
			respondStoreError(ctx, err, "load "+table)
			return
		}
		if author != userID && !middleware.IsAdmin(ctx, f.cfg) {
			utils.Error(ctx, http.StatusForbidden, 40302, "only the author or an administrator may delete this")
			return
		}
		if err := f.store.SoftDelete(ctx.Request.Context(), table, id); err != nil {
			respondStoreError(ctx, err, "delete "+table)
			return
		}
		utils.Success(ctx, gin.H{"id": id, "is_deleted": true})
	}
}

// ApproveTopic marks a topic as approved.
func (f *ForumController) ApproveTopic(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if err := f.store.ApproveTopic(ctx.Request.Context(), id); err != nil {
		respondStoreError(ctx, err, "approve topic")
		return
	}
	utils.Success(ctx, gin.H{"id": id, "is_approved": true})
}

// DeleteTopic hard-deletes a topic with everything beneath it.
func (f *ForumController) DeleteTopic(ctx *gin.Context) {
	f.hardDelete(ctx, schema.TopicTable, f.store.DeleteTopic)
}

// DeleteQuestion hard-deletes a question with its responses, upvotes and tags.
func (f *ForumController) DeleteQuestion(ctx *gin.Context) {
	f.hardDelete(ctx, schema.QuestionTable, f.store.DeleteQuestion)
}

func (f *ForumController) hardDelete(ctx *gin.Context, table string, del func(context.Context, uint) (store.DeleteResult, error)) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	result, err := del(ctx.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			utils.Logger.Error("hard delete failed", zap.String("table", table), zap.Uint("id", id), zap.Error(err))
		}
		respondStoreError(ctx, err, "delete "+table)
		return
	}
	utils.Logger.Info("hard delete",
		zap.String("table", table),
		zap.Uint("id", id),
		zap.Int64("rows", result.Total()),
		zap.String("by", ctx.GetString(middleware.ContextUsernameKey)),
	)
	utils.Success(ctx, gin.H{"id": id, "deleted": result})
}
