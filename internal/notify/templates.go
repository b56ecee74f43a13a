package notify

import "fmt"

// CreatedMessage is sent to the owner of a new complaint. distanceKm is
// omitted when nil.
func CreatedMessage(title, station string, distanceKm *float64, routed bool) string {
	if !routed {
		return fmt.Sprintf("Complaint \"%s\" submitted and pending review.", title)
	}
	if distanceKm == nil {
		return fmt.Sprintf("Your complaint \"%s\" was sent to %s Police Station.", title, station)
	}
	return fmt.Sprintf("Your complaint \"%s\" was sent to %s Police Station (%.1f km away).", title, station, *distanceKm)
}

// StationMessage announces a new complaint to its station.
func StationMessage(title string) string {
	return "New complaint raised: " + title
}

// AssignedMessage tells the owner an officer took the complaint.
func AssignedMessage(title, officer string) string {
	return fmt.Sprintf("Your complaint \"%s\" has been assigned to Officer %s and is now in progress.", title, officer)
}

// StatusMessage tells the owner the status changed.
func StatusMessage(title, status, officer string) string {
	return fmt.Sprintf("Status of your complaint \"%s\" has been updated to %s by Officer %s.", title, status, officer)
}
