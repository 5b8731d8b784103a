package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"promptforge/models"
	"promptforge/utils"
)

type CategoryController struct {
	DB         *gorm.DB
	Logger     *logrus.Logger
	Membership *utils.MembershipService
}

func NewCategoryController(db *gorm.DB, logger *logrus.Logger, membership *utils.MembershipService) *CategoryController {
	return &CategoryController{DB: db, Logger: logger, Membership: membership}
}

type categoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Color       string `json:"color" validate:"max=20"`
}

func (cc *CategoryController) CreateCategory(c *fiber.Ctx) error {
	user := currentUser(c)

	teamID, err := teamContext(c)
	if err != nil {
		return err
	}
	if teamID != nil {
		if err := cc.Membership.RequireRole(user.ID, *teamID, models.RoleMember); err != nil {
			return respondAppError(c, err)
		}
	}

	var input categoryInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	category := models.Category{
		UserID:      user.ID,
		TeamID:      teamID,
		Name:        input.Name,
		Description: input.Description,
	}
	if input.Color != "" {
		category.Color = input.Color
	}

	if err := cc.DB.Create(&category).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create category", nil)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(category))
}

func (cc *CategoryController) GetCategories(c *fiber.Ctx) error {
	user := currentUser(c)

	teamID, err := teamContext(c)
	if err != nil {
		return err
	}
	scope, err := cc.Membership.VisibleScope(user.ID, teamID)
	if err != nil {
		return respondAppError(c, err)
	}

	var categories []models.Category
	if err := cc.DB.Scopes(scope).Order("name ASC").Find(&categories).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch categories", nil)
	}
	return c.JSON(utils.SuccessResponse(categories))
}

func (cc *CategoryController) UpdateCategory(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	category, err := cc.loadAccessibleCategory(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}

	var input categoryInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	category.Name = input.Name
	category.Description = input.Description
	if input.Color != "" {
		category.Color = input.Color
	}
	if err := cc.DB.Save(category).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update category", nil)
	}
	return c.JSON(utils.SuccessResponse(category))
}

func (cc *CategoryController) DeleteCategory(c *fiber.Ctx) error {
	user := currentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	category, err := cc.loadAccessibleCategory(user.ID, id)
	if err != nil {
		return respondAppError(c, err)
	}

	err = cc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("category_id = ?", category.ID).Delete(&models.PromptCategory{}).Error; err != nil {
			return err
		}
		return tx.Delete(category).Error
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}

func (cc *CategoryController) loadAccessibleCategory(userID, categoryID uint) (*models.Category, error) {
	var category models.Category
	if err := cc.DB.First(&category, categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("category not found")
		}
		return nil, err
	}
	if !cc.Membership.CanAccessCategory(userID, &category) {
		return nil, models.NewNotFoundError("category not found")
	}
	return &category, nil
}
