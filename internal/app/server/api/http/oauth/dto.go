package oauth

type callbackInput struct {
	Provider string `path:"provider" doc:"Provider name"`
	Code     string `query:"code" doc:"Authorization code"`
	State    string `query:"state" doc:"Tenant id carried through the authorize redirect"`
}

type callbackOutput struct {
	Status   int
	Location string `header:"Location"`
}
