package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/fabric_api/internal/middleware"
	"github.com/GTDGit/fabric_api/internal/service"
	"github.com/GTDGit/fabric_api/internal/utils"
)

type CategoryHandler struct {
	categoryService *service.CategoryService
}

func NewCategoryHandler(categoryService *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// activeOnly hides inactive categories from everyone but admins asking for all.
func activeOnly(c *gin.Context) bool {
	return !(middleware.IsAdmin(c) && c.Query("all") == "true")
}

// GetCategories handles GET /api/v1/categories
func (h *CategoryHandler) GetCategories(c *gin.Context) {
	list, err := h.categoryService.List(c.Request.Context(), activeOnly(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Categories retrieved successfully", list)
}

// GetTree handles GET /api/v1/categories/tree
func (h *CategoryHandler) GetTree(c *gin.Context) {
	tree, err := h.categoryService.Tree(c.Request.Context(), activeOnly(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Category tree retrieved successfully", tree)
}

// GetCategory handles GET /api/v1/categories/:id
func (h *CategoryHandler) GetCategory(c *gin.Context) {
	cat, err := h.categoryService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Category retrieved successfully", cat)
}

// GetCategoryBySlug handles GET /api/v1/categories/slug/:slug
func (h *CategoryHandler) GetCategoryBySlug(c *gin.Context) {
	cat, err := h.categoryService.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Category retrieved successfully", cat)
}

// CreateCategory handles POST /api/v1/categories
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req service.CategoryRequest
	if !utils.BindJSON(c, &req) {
		return
	}
	cat, err := h.categoryService.Create(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 201, "Category created successfully", cat)
}

// UpdateCategory handles PUT /api/v1/categories/:id
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	var req service.CategoryRequest
	if !utils.BindJSON(c, &req) {
		return
	}
	cat, err := h.categoryService.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Category updated successfully", cat)
}

// DeleteCategory handles DELETE /api/v1/categories/:id
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	if err := h.categoryService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Category deleted successfully", nil)
}
