package projects

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Module owns project CRUD.
type Module struct {
	db *gorm.DB
}

// RegisterRoutes initialises the projects module and mounts its routes.
func RegisterRoutes(router *gin.Engine) (*Module, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Project{}); err != nil {
		return nil, err
	}

	module := &Module{db: db}

	group := router.Group("/projects")
	group.GET("", module.handleListProjects)
	group.POST("", module.handleCreateProject)
	group.GET("/:id", module.handleGetProject)
	group.PATCH("/:id", module.handleUpdateProject)
	group.DELETE("/:id", module.handleDeleteProject)

	return module, nil
}

// DB exposes the module's database handle for sibling modules that resolve
// project ownership.
func (m *Module) DB() *gorm.DB {
	return m.db
}

type createProjectRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (m *Module) handleListProjects(c *gin.Context) {
	var list []Project
	if err := m.db.WithContext(c.Request.Context()).Order("updated_at DESC").Find(&list).Error; err != nil {
		log.Printf("projects: list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list projects"})
		return
	}

	for i := range list {
		m.attachCounts(c, &list[i])
	}

	c.JSON(http.StatusOK, list)
}

func (m *Module) attachCounts(c *gin.Context, project *Project) {
	ctx := c.Request.Context()
	if err := m.db.WithContext(ctx).Table("characters").Where("project_id = ?", project.ID).Count(&project.CharacterCount).Error; err != nil {
		log.Printf("projects: count characters failed: %v", err)
	}
	if err := m.db.WithContext(ctx).Table("animations").Where("project_id = ?", project.ID).Count(&project.AnimationCount).Error; err != nil {
		log.Printf("projects: count animations failed: %v", err)
	}
}

func (m *Module) handleCreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project name is required"})
		return
	}

	project := Project{Name: req.Name, Description: req.Description}
	if err := m.db.WithContext(c.Request.Context()).Create(&project).Error; err != nil {
		log.Printf("projects: create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create project"})
		return
	}

	c.JSON(http.StatusCreated, project)
}

func (m *Module) handleGetProject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var project Project
	if err := m.db.WithContext(c.Request.Context()).First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		log.Printf("projects: load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load project"})
		return
	}

	m.attachCounts(c, &project)
	c.JSON(http.StatusOK, project)
}

func (m *Module) handleUpdateProject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updates := make(map[string]any, 2)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = req.Description
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	result := m.db.WithContext(c.Request.Context()).Model(&Project{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		log.Printf("projects: update failed: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update project"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}

	var project Project
	if err := m.db.WithContext(c.Request.Context()).First(&project, "id = ?", id).Error; err != nil {
		log.Printf("projects: reload failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reload project"})
		return
	}
	c.JSON(http.StatusOK, project)
}

func (m *Module) handleDeleteProject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result := m.db.WithContext(c.Request.Context()).Delete(&Project{}, "id = ?", id)
	if result.Error != nil {
		log.Printf("projects: delete failed: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete project"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
