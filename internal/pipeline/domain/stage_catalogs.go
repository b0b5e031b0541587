package domain

// Ranks are assigned from slice order: happy path first, lost terminals last.

var candidateStages = newCatalog(KindCandidate, []Stage{
	{Name: "prospect", Label: "Prospect"},
	{Name: "miniIntake", Label: "Mini intake"},
	{Name: "fullIntake", Label: "Full intake"},
	{Name: "visaEligibility", Label: "Visa eligibility"},
	{Name: "cvPreparation", Label: "CV preparation"},
	{Name: "cvReview", Label: "CV review"},
	{Name: "oneWayPreparation", Label: "One way preparation"},
	{Name: "oneWayReview", Label: "One way review"},
	{Name: "testPreparation", Label: "Test preparation"},
	{Name: "testing", Label: "Testing"},
	{Name: "twoWayPreparation", Label: "Two way preparation"},
	{Name: "twoWayReview", Label: "Two way review"},
	{Name: "offer", Label: "Offer"},
	{Name: "acceptance", Label: "Acceptance", Employed: true},
	{Name: "provincialVisaPreparation", Label: "Provincial visa preparation", Employed: true},
	{Name: "provincialVisaProcessing", Label: "Provincial visa processing", Employed: true},
	{Name: "visaPreparation", Label: "Visa preparation", Employed: true},
	{Name: "visaProcessing", Label: "Visa processing", Employed: true},
	{Name: "jobOffer", Label: "Job offer", Employed: true},
	{Name: "relocating", Label: "Relocating", Employed: true},
	{Name: "relocated", Label: "Relocated", Terminal: true, Won: true, Employed: true},

	{Name: "noJobOffer", Label: "Closed - no job offer", Terminal: true},
	{Name: "noVisa", Label: "Closed - no visa", Terminal: true},
	{Name: "notFitForRole", Label: "Closed - not fit for role", Terminal: true},
	{Name: "notEligibleForVisa", Label: "Closed - not eligible for visa", Terminal: true},
	{Name: "notEligibleForTC", Label: "Closed - not eligible for TC", Terminal: true, ImpliedStatus: CandidateStatusIneligible},
	{Name: "noInterview", Label: "Closed - no interview", Terminal: true},
	{Name: "candidateRejectsOffer", Label: "Closed - candidate rejects offer", Terminal: true},
	{Name: "candidateWithdraws", Label: "Closed - candidate withdraws", Terminal: true},
	{Name: "relocatedNoJobOfferPathway", Label: "Closed - relocated via other pathway", Terminal: true, ImpliedStatus: CandidateStatusWithdrawn},
})

var jobStages = newCatalog(KindJob, []Stage{
	{Name: "prospect", Label: "Prospect"},
	{Name: "briefing", Label: "Briefing"},
	{Name: "pitching", Label: "Pitching"},
	{Name: "mou", Label: "MOU"},
	{Name: "identifyingRoles", Label: "Identifying roles"},
	{Name: "candidateSearch", Label: "Candidate search"},
	{Name: "visaEligibility", Label: "Visa eligibility"},
	{Name: "cvPreparation", Label: "CV preparation"},
	{Name: "cvReview", Label: "CV review"},
	{Name: "recruitmentProcess", Label: "Recruitment process"},
	{Name: "jobOffer", Label: "Job offer"},
	{Name: "visaPreparation", Label: "Visa preparation"},
	{Name: "hiringCompleted", Label: "Hiring completed", Terminal: true, Won: true},

	{Name: "ineligibleEmployer", Label: "Closed - ineligible employer", Terminal: true},
	{Name: "ineligibleOccupation", Label: "Closed - ineligible occupation", Terminal: true},
	{Name: "ineligibleRegion", Label: "Closed - ineligible region", Terminal: true},
	{Name: "noInterest", Label: "Closed - no interest", Terminal: true},
	{Name: "noJobOffer", Label: "Closed - no job offer", Terminal: true},
	{Name: "noPrPathway", Label: "Closed - no PR pathway", Terminal: true},
	{Name: "noSuitableCandidates", Label: "Closed - no suitable candidates", Terminal: true},
	{Name: "noVisa", Label: "Closed - no visa", Terminal: true},
	{Name: "tooExpensive", Label: "Closed - too expensive", Terminal: true},
	{Name: "tooHighWage", Label: "Closed - wage too high", Terminal: true},
	{Name: "tooLong", Label: "Closed - too long", Terminal: true},
})
