package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/symptomchecker/internal/checker"
	"github.com/Skufu/symptomchecker/internal/logging"
	"github.com/Skufu/symptomchecker/internal/schema"
)

const predictionFailedText = "Prediction failed. Please try again."

func (h *handlers) home(c *gin.Context) {
	form := h.checker.ShowForm()
	c.HTML(http.StatusOK, "index.html", page{Symptoms: form.Symptoms, Selected: form.Selected})
}

func (h *handlers) addSymptom(c *gin.Context) {
	selected := selectedSymptoms(c)
	updated := checker.AddSymptom(selected, schema.Normalize(c.PostForm("symptom")))
	c.HTML(http.StatusOK, "index.html", page{
		Symptoms: h.checker.Schema().Names(),
		Selected: updated,
	})
}

func (h *handlers) predict(c *gin.Context) {
	selected := selectedSymptoms(c)
	res, err := h.checker.Predict(c.Request.Context(), selected)
	if err != nil {
		_ = c.Error(err)
		logging.RequestLogger(c, h.log).Error("predict request failed", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "index.html", page{
			Symptoms: h.checker.Schema().Names(),
			Selected: selected,
			Error:    predictionFailedText,
		})
		return
	}
	c.HTML(http.StatusOK, "index.html", page{
		Symptoms:       h.checker.Schema().Names(),
		Selected:       res.Selected,
		PredictionText: res.Text,
	})
}

// selectedSymptoms reads the echoed selection, dropping blanks.
func selectedSymptoms(c *gin.Context) []string {
	return schema.NormalizeAll(c.PostFormArray("selected_symptoms"))
}

type predictRequest struct {
	Symptoms []string `json:"symptoms"`
}

func (h *handlers) apiSymptoms(c *gin.Context) {
	s := h.checker.Schema()
	c.JSON(http.StatusOK, gin.H{
		"symptoms":    s.Names(),
		"fingerprint": s.Fingerprint(),
		"source":      h.checker.SchemaSource(),
	})
}

func (h *handlers) apiPredict(c *gin.Context) {
	var payload predictRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	var selected []string
	for _, s := range schema.NormalizeAll(payload.Symptoms) {
		selected = checker.AddSymptom(selected, s)
	}
	res, err := h.checker.Predict(c.Request.Context(), selected)
	if err != nil {
		_ = c.Error(err)
		logging.RequestLogger(c, h.log).Error("predict request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}
