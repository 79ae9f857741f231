package protocol

import (
	"context"

	"seller-gateway/internal/config"
	"seller-gateway/internal/models"
)

// DefaultProcessors returns the built-in processor set: protocol-correct
// skeleton callbacks for every action. A deployment replaces entries with
// processors backed by its own catalog and order systems.
func DefaultProcessors(cfg config.ProtocolConfig, providerName string) map[string]Processor {
	descriptor := map[string]interface{}{"name": providerName}

	echoOrder := ProcessorFunc(func(_ context.Context, req *models.Request) (map[string]interface{}, error) {
		order, _ := req.Message["order"].(map[string]interface{})
		if order == nil {
			order = map[string]interface{}{}
		}
		return map[string]interface{}{"order": order}, nil
	})

	return map[string]Processor{
		"search": ProcessorFunc(func(_ context.Context, _ *models.Request) (map[string]interface{}, error) {
			return map[string]interface{}{
				"catalog": map[string]interface{}{
					"bpp/descriptor": descriptor,
					"bpp/providers":  []map[string]interface{}{},
				},
			}, nil
		}),
		"select":  echoOrder,
		"init":    echoOrder,
		"confirm": echoOrder,
		"status":  echoOrder,
		"track": ProcessorFunc(func(_ context.Context, _ *models.Request) (map[string]interface{}, error) {
			return map[string]interface{}{
				"tracking": map[string]interface{}{"status": "inactive"},
			}, nil
		}),
		"cancel": echoOrder,
		"update": echoOrder,
	}
}
