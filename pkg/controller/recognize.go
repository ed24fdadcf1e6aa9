package controller

import (
	"github.com/MrCodeEU/facegate/pkg/logging"
	"github.com/MrCodeEU/facegate/pkg/recognition"
)

// recognize matches the cycle's embeddings against the store and pulses the
// relay on an accepted match.
func (c *Controller) recognize(embeddings []recognition.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	log := logging.Component("match")

	result := recognition.BestMatchAny(embeddings, c.store.All())
	if !result.Found {
		log.WithField("identities", 0).Info("No match")
		return nil
	}

	fields := logging.Fields{"id": result.IdentityID, "score": result.Score}
	if !result.Accepted(c.cfg.Recognition.MatchThreshold) {
		log.WithFields(fields).Info("No match")
		return nil
	}

	if c.relay.Active() {
		log.WithFields(fields).Info("Match while relay active")
		return nil
	}

	if _, err := c.relay.Energize(c.cfg.PulseDuration()); err != nil {
		return err
	}
	log.WithFields(fields).Info("Access granted")
	return nil
}
