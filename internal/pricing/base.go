package pricing

import (
	"math"

	"github.com/relocore/dispatch/internal/model"
)

// BasePrice is the deterministic pre-adjustment price: volume, distance,
// floor and parking access penalties, itemized services, and estimated labor.
func (a *Adjuster) BasePrice(job *model.JobRequest, distanceKm float64) (price, laborHours float64) {
	price = job.VolumeM3*a.params.VolumeRate + distanceKm*a.params.DistanceRate

	price += a.floorPenalty(job.PickupFloor, job.PickupElevator)
	price += a.floorPenalty(job.DeliveryFloor, job.DeliveryElevator)

	if job.ParkingDistanceM > a.params.ParkingFreeM {
		excess := job.ParkingDistanceM - a.params.ParkingFreeM
		price += math.Ceil(excess/10) * a.params.ParkingRatePer10M
	}

	for _, svc := range job.AdditionalServices {
		price += svc.Cost
	}

	laborHours = a.estimateLaborHours(job, distanceKm)
	price += laborHours * a.params.HourlyRate
	return price, laborHours
}

// floorPenalty charges for every no-elevator floor above the 2nd.
func (a *Adjuster) floorPenalty(floor int, elevator bool) float64 {
	if elevator || floor <= 2 {
		return 0
	}
	return float64(floor-2) * a.params.FloorPenalty
}

// estimateLaborHours derives crew hours from volume, drive distance, and
// access factors, rounded to the nearest half hour.
func (a *Adjuster) estimateLaborHours(job *model.JobRequest, distanceKm float64) float64 {
	hours := job.VolumeM3*0.2 + distanceKm*0.02
	if !job.PickupElevator && job.PickupFloor > 1 {
		hours += 0.5 * float64(job.PickupFloor-1)
	}
	if !job.DeliveryElevator && job.DeliveryFloor > 1 {
		hours += 0.5 * float64(job.DeliveryFloor-1)
	}
	if hours < 1 {
		hours = 1
	}
	return halfHours(hours)
}
