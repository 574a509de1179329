package realtime

import "strconv"

// Room identifie un groupe de diffusion. Tous les noms de salons sont
// construits ici, pour que la convention de nommage ne vive qu'à un endroit.
type Room string

// RoomOrganizers regroupe toutes les connexions authentifiées avec le rôle ORGANIZER.
const RoomOrganizers Room = "organizers"

func UserRoom(userID int) Room {
	return Room("user-" + strconv.Itoa(userID))
}

func OrganizerRoom(userID int) Room {
	return Room("organizer-" + strconv.Itoa(userID))
}

func CompetitionRoom(competitionID int) Room {
	return Room("competition-" + strconv.Itoa(competitionID))
}
