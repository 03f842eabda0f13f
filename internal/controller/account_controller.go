package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"goodspeech_backend/internal/model"
	"goodspeech_backend/internal/store"
	"goodspeech_backend/pkg/database"
	"goodspeech_backend/pkg/utils/cloudflare"
	"goodspeech_backend/pkg/utils/image"
	"goodspeech_backend/pkg/utils/jwt"
	"goodspeech_backend/pkg/utils/validation"
)

type ProfileUpdateInput struct {
	DisplayName string `json:"display_name"`
	Locale      string `json:"locale"`
}

var accountEnsurer *store.Accounts

func InitAccountController() {
	accountEnsurer = store.NewAccounts(database.DB)
}

// GetMe returns the caller's account, creating it on first verified visit.
// The create is idempotent: an existing record comes back unchanged.
func GetMe(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	acct, err := accountEnsurer.Ensure(claims.AccountID, claims.Email, claims.Name, time.Now())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not load account",
		})
	}

	return c.JSON(acct)
}

func UpdateProfile(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(ProfileUpdateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	var acct model.Account
	if err := database.DB.First(&acct, "id = ?", claims.AccountID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Account not found",
		})
	}

	updates := map[string]interface{}{}
	if input.DisplayName != "" {
		updates["display_name"] = input.DisplayName
	}
	if input.Locale != "" {
		updates["locale"] = input.Locale
	}
	if len(updates) > 0 {
		if err := database.DB.Model(&acct).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not update profile",
			})
		}
	}

	return c.JSON(acct)
}

func UploadAvatar(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	file, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
		})
	}

	if err := validation.ValidateImage(file); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var acct model.Account
	if err := database.DB.First(&acct, "id = ?", claims.AccountID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Account not found",
		})
	}

	buf, err := image.ConvertToWebP(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Could not process image",
		})
	}

	result, err := cloudflare.UploadAvatar(acct.ID, buf)
	if err != nil {
		log.Printf("Avatar upload failed for %s: %v", acct.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not upload avatar",
		})
	}

	oldURL := acct.AvatarURL
	if err := database.DB.Model(&acct).Update("avatar_url", result.URL).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save avatar",
		})
	}

	if oldURL != "" {
		if err := cloudflare.DeleteObject(oldURL); err != nil {
			log.Printf("Could not delete old avatar %s: %v", oldURL, err)
		}
	}

	return c.JSON(fiber.Map{
		"avatar_url": result.URL,
	})
}
