package routes

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"cv-evaluator/internal/config"
	"cv-evaluator/models"
	"cv-evaluator/services"
	"cv-evaluator/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EvaluationScheduler defers one evaluation run for later execution on the
// worker, after the trigger request has already been acknowledged.
type EvaluationScheduler interface {
	ScheduleEvaluation(jobID, query string) error
}

// SetupEvaluationRoutes wires the ingestion and evaluation endpoints.
func SetupEvaluationRoutes(router *gin.Engine, cfg *config.Config, ingestion *services.IngestionService, jobs *services.JobStore, scheduler EvaluationScheduler) {
	router.POST("/upload", HandleUpload(cfg, ingestion))
	router.POST("/evaluate", HandleEvaluate(jobs, scheduler))
	router.GET("/result/:id", HandleResult(jobs))
}

// HandleUpload ingests candidate documents synchronously: the response is
// only sent once extraction, embedding and indexing have all completed.
func HandleUpload(cfg *config.Config, ingestion *services.IngestionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithBadRequest(c, "invalid multipart form")
			return
		}

		files := c.Request.MultipartForm.File["files"]
		if len(files) == 0 {
			utils.RespondWithBadRequest(c, "No files uploaded")
			return
		}
		if len(files) > cfg.MaxUploadFiles {
			utils.RespondWithBadRequest(c, fmt.Sprintf("at most %d files per upload", cfg.MaxUploadFiles))
			return
		}

		uploadDir := filepath.Join(cfg.FileStorageDir, "uploads")
		if err := os.MkdirAll(uploadDir, 0755); err != nil {
			utils.RespondWithInternalError(c, "failed to create upload directory")
			return
		}

		uploaded := make([]services.UploadedFile, 0, len(files))
		for _, header := range files {
			dst := filepath.Join(uploadDir, fmt.Sprintf("%s.pdf", uuid.NewString()))
			if err := c.SaveUploadedFile(header, dst); err != nil {
				utils.RespondWithInternalError(c, "failed to save file")
				return
			}
			uploaded = append(uploaded, services.UploadedFile{Name: header.Filename, Path: dst})
		}

		result, err := ingestion.IngestUpload(c.Request.Context(), uploaded)
		if err != nil {
			utils.RespondWithInternalError(c, err.Error())
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":      "Uploaded and embedded",
			"files":        result.Files,
			"total_chunks": result.TotalChunks,
			"jobId":        result.JobID,
		})
	}
}

// HandleEvaluate acknowledges immediately and schedules the evaluation to
// run after a fixed delay. A jobId triggers the structured CV+project
// pipeline; a bare query creates a fresh processing job for the ad hoc case.
func HandleEvaluate(jobs *services.JobStore, scheduler EvaluationScheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			JobID string `json:"jobId"`
			Query string `json:"query"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "invalid request body")
			return
		}

		var jobID, query string
		switch {
		case req.JobID != "":
			if _, err := jobs.StartProcessing(req.JobID); err != nil {
				if errors.Is(err, services.ErrJobNotFound) {
					utils.RespondWithNotFound(c, "job not found")
				} else {
					utils.RespondWithConflict(c, err.Error())
				}
				return
			}
			jobID = req.JobID

		case req.Query != "":
			job := jobs.Create(models.StatusProcessing, nil)
			jobID = job.ID
			query = req.Query

		default:
			utils.RespondWithBadRequest(c, "jobId or query required")
			return
		}

		if err := scheduler.ScheduleEvaluation(jobID, query); err != nil {
			jobs.Finish(jobID, models.StatusFailed, err.Error())
			utils.RespondWithInternalError(c, "failed to schedule evaluation")
			return
		}

		c.JSON(http.StatusOK, gin.H{"jobId": jobID, "status": models.StatusProcessing})
	}
}

// HandleResult is a pure read of current job state, safe to poll.
func HandleResult(jobs *services.JobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := jobs.Get(c.Param("id"))
		if err != nil {
			utils.RespondWithNotFound(c, "job not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": job.Status, "result": job.Result})
	}
}
