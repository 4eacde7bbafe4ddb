package services

import "github.com/helphive/backend/internal/models"

// The offer ledger lives inside each HelpRequest, so offers are read and
// written together with the status they depend on.

// addOffer appends o unless the helper already has an offer. It reports
// whether the ledger changed.
func addOffer(req *models.HelpRequest, o models.Offer) bool {
	if hasOffer(req, o.HelperID) {
		return false
	}
	req.Offers = append(req.Offers, o)
	return true
}

func clearOffers(req *models.HelpRequest) {
	req.Offers = []models.Offer{}
}

func findOffer(req *models.HelpRequest, helperID string) (models.Offer, bool) {
	for _, o := range req.Offers {
		if o.HelperID == helperID {
			return o, true
		}
	}
	return models.Offer{}, false
}

func hasOffer(req *models.HelpRequest, helperID string) bool {
	_, ok := findOffer(req, helperID)
	return ok
}
