package messages

// Defaults is the built-in catalog. A YAML override file may replace any
// entry; keys missing from the file keep these values.
var Defaults = map[string]string{
	"loginPrompt": "Welcome to {{mudName}}!\n" +
		"Use \"connect <name> <password>\" to log in, or\n" +
		"\"create <name> <password>\" to make a new character.\n" +
		"Type \"QUIT\" to leave.",
	"incorrectArgs":   "Incorrect arguments for {{command}}. Try \"HELP {{command}}\".",
	"alreadyLoggedIn": "You are already logged in.",
	"unknownCommand":  "Huh? (Type \"help\" for help.)",
	"didYouMean":      "Did you mean \"{{command}}\"?",
	"fatalError":      "A fatal error occurred. You will be disconnected.",

	"badUsername":       "That is not a valid name.",
	"badPassword":       "That is not a valid password.",
	"usernameInUse":     "That name is already in use.",
	"playerNotFound":    "There is no player with that name.",
	"incorrectPassword": "Incorrect password.",
	"hasConnected":      "{{name}} has connected.",
	"hasDisconnected":   "{{name}} has disconnected.",

	"youSay": "You say \"{{message}}\"",
	"says":   "{{name}} says \"{{message}}\"",

	"goesHome":        "{{name}} goes home.",
	"noPlaceLikeHome": "There's no place like home...",
	"goneHome":        "You wake up back home, without your possessions.",
	"leaves":          "{{name}} has left.",
	"enters":          "{{name}} has arrived.",
	"ambigGo":         "I don't know which way you mean!",
	"noGo":            "You can't go that way.",

	"roomName":            "{{name}}",
	"roomNameOwner":       "{{name}} (#{{id}})",
	"carrying":            "Carrying:",
	"contents":            "Contents:",
	"nothingSpecial":      "You see nothing special.",
	"examineContentsName": "{{name}} (#{{id}})",
	"examineUnknown":      "I can't see that here.",
	"dontSeeThat":         "I don't see that here.",

	"examine": "{{name}} (#{{id}}) [{{type}}]\n" +
		"Owner: {{owner}}  Flags: {{flags}}\n" +
		"Location: {{location}}  Home: {{target}}  Key: {{key}}\n" +
		"Description: {{description}}\n" +
		"Success: {{successMessage}}\n" +
		"Others success: {{othersSuccessMessage}}\n" +
		"Failure: {{failureMessage}}\n" +
		"Others failure: {{othersFailureMessage}}",

	"dropped":  "Dropped.",
	"dontHave": "You don't have that!",

	"cantTakeThat":    "You can't take that!",
	"alreadyHaveThat": "You already have that!",
	"taken":           "Taken.",
	"takeUnknown":     "I don't see that here.",

	"youAreCarrying":  "You are carrying:",
	"carryingNothing": "You aren't carrying anything.",

	"page":           "You sense that {{name}} is looking for you in {{location}}.",
	"pageOK":         "Your message has been sent.",
	"isNotAvailable": "That person is not available.",

	"youWhisper":   "You whisper \"{{message}}\" to {{name}}.",
	"toWhisper":    "{{name}} whispers \"{{message}}\"",
	"whisper":      "{{fromName}} whispers something to {{toName}}.",
	"overheard":    "You overhear {{fromName}} whisper \"{{message}}\" to {{toName}}.",
	"notConnected": "{{name}} is not connected.",
	"notInRoom":    "There is no one here by that name.",

	"help":        "{{command}}",
	"invalidName": "That is not a valid name.",
	"created":     "Created.",

	"changePasswordSuccess": "Password changed.",
	"changePasswordFail":    "Sorry, could not change your password.",

	"set":              "{{property}} set.",
	"reset":            "{{property}} reset.",
	"notFound":         "Nothing found.",
	"setUnknown":       "I can't see that here.",
	"permissionDenied": "Permission denied.",
	"ambigSet":         "I don't know which one you mean!",

	"alreadyThere": "You are already there!",
	"pathHeader":   "Path from {{from}} to {{to}}:",
	"via":          "  via {{name}}",

	"notARoom":      "That is not a room!",
	"linked":        "Linked.",
	"homeSet":       "Home set.",
	"unlinked":      "Unlinked.",
	"unlinkUnknown": "Unlink what?",
	"locked":        "Locked.",
	"keyUnknown":    "I can't find that key.",
	"lockUnknown":   "I can't see what you want to lock.",
	"unlocked":      "Unlocked.",
	"unlockUnknown": "I can't see what you want to unlock.",
	"roomCreated":   "{{name}} created with room number {{id}}.",
	"opened":        "Opened.",
}

// Property labels used by the property setters and @set.
var Properties = map[string]string{
	"description":          "Description",
	"name":                 "Name",
	"successMessage":       "Success message",
	"othersSuccessMessage": "Others success message",
	"failureMessage":       "Failure message",
	"othersFailureMessage": "Others failure message",
	"link_ok":              "link_ok",
	"anti_lock":            "anti_lock",
	"temple":               "temple",
}
