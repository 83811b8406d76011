package rounds

// DefaultCatalog returns the built-in country set.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Country{Name: "France", Tier: Easy, Folder: "france", TotalImages: 225, Names: []string{"france", "francia"}},
		Country{Name: "Spain", Tier: Easy, Folder: "spain", TotalImages: 219, Names: []string{"spain", "espagne", "espana"}},
		Country{Name: "Italy", Tier: Easy, Folder: "italy", TotalImages: 220, Names: []string{"italy", "italie", "italia"}},
		Country{Name: "Germany", Tier: Medium, Folder: "germany", TotalImages: 222, Names: []string{"germany", "allemagne", "deutschland"}},
		Country{Name: "England", Tier: Easy, Folder: "england", TotalImages: 214, Names: []string{"united kingdom", "royaume-uni", "royaume uni", "uk", "angleterre", "england"}},
		Country{Name: "Portugal", Tier: Medium, Folder: "portugal", TotalImages: 224, Names: []string{"portugal"}},
		Country{Name: "Japan", Tier: Easy, Folder: "japan", TotalImages: 228, Names: []string{"japan", "japon", "nippon"}},
		Country{Name: "USA", Tier: Easy, Folder: "usa", TotalImages: 225, Names: []string{"usa", "united states", "etats-unis", "etats unis", "us", "america", "amerique"}},
		Country{Name: "Canada", Tier: Medium, Folder: "canada", TotalImages: 222, Names: []string{"canada"}},
		Country{Name: "Brazil", Tier: Medium, Folder: "brazil", TotalImages: 220, Names: []string{"brazil", "bresil", "brasil"}},
		Country{Name: "Argentina", Tier: Hard, Folder: "argentina", TotalImages: 203, Names: []string{"argentina", "argentine"}},
		Country{Name: "Mexico", Tier: Medium, Folder: "mexico", TotalImages: 212, Names: []string{"mexico", "mexique"}},
		Country{Name: "Australia", Tier: Easy, Folder: "australia", TotalImages: 226, Names: []string{"australia", "australie", "oz"}},
		Country{Name: "NewZealand", Tier: Hard, Folder: "new_zealand", TotalImages: 120, Names: []string{"new zealand", "nouvelle-zelande", "nouvelle zelande"}},
		Country{Name: "China", Tier: Medium, Folder: "china", TotalImages: 216, Names: []string{"china", "chine"}},
		Country{Name: "India", Tier: Medium, Folder: "india", TotalImages: 197, Names: []string{"india", "inde"}},
		Country{Name: "Thailand", Tier: Medium, Folder: "thailand", TotalImages: 228, Names: []string{"thailand", "thailande", "siam"}},
		Country{Name: "Egypt", Tier: Easy, Folder: "egypt", TotalImages: 197, Names: []string{"egypt", "egypte"}},
		Country{Name: "Morocco", Tier: Hard, Folder: "marocco", TotalImages: 133, Names: []string{"morocco", "maroc"}},
		Country{Name: "SouthAfrica", Tier: Hard, Folder: "south_africa", TotalImages: 202, Names: []string{"south africa", "afrique du sud"}},
		Country{Name: "Austria", Tier: Hard, Folder: "austria", TotalImages: 195, Names: []string{"austria", "autriche"}},
		Country{Name: "Belgium", Tier: Hard, Folder: "belgium", TotalImages: 234, Names: []string{"belgium", "belgique"}},
		Country{Name: "Chile", Tier: Hard, Folder: "chile", TotalImages: 146, Names: []string{"chile", "chili"}},
		Country{Name: "Croatia", Tier: Medium, Folder: "croatia", TotalImages: 179, Names: []string{"croatia", "croatie", "hrvatska"}},
		Country{Name: "Cuba", Tier: Medium, Folder: "cuba", TotalImages: 186, Names: []string{"cuba"}},
		Country{Name: "EmiratsArabesUnis", Tier: Easy, Folder: "dubai", TotalImages: 178, Names: []string{"dubai", "emirats arabes unis", "uae", "emirats", "emirat arabes unis", "emirats arabe unis", "emirats arabes uni"}},
		Country{Name: "Greece", Tier: Easy, Folder: "greece", TotalImages: 222, Names: []string{"greece", "grece", "grèce"}},
		Country{Name: "Ireland", Tier: Hard, Folder: "ireland", TotalImages: 210, Names: []string{"ireland", "irlande", "eire"}},
		Country{Name: "Malaysia", Tier: Medium, Folder: "malaysia", TotalImages: 159, Names: []string{"malaysia", "malaisie"}},
		Country{Name: "Netherlands", Tier: Easy, Folder: "netherlands", TotalImages: 224, Names: []string{"netherlands", "pays-bas", "pays bas", "hollande", "holland"}},
		Country{Name: "Norway", Tier: Easy, Folder: "norway", TotalImages: 162, Names: []string{"norway", "norvege", "norvège"}},
		Country{Name: "Peru", Tier: Hard, Folder: "peru", TotalImages: 160, Names: []string{"peru", "perou", "pérou"}},
		Country{Name: "Russia", Tier: Easy, Folder: "russia", TotalImages: 223, Names: []string{"russia", "russie"}},
		Country{Name: "Sweden", Tier: Medium, Folder: "sweden", TotalImages: 181, Names: []string{"sweden", "suede", "suède"}},
		Country{Name: "Switzerland", Tier: Medium, Folder: "switzerland", TotalImages: 227, Names: []string{"switzerland", "suisse", "schweiz"}},
		Country{Name: "Turkey", Tier: Easy, Folder: "turkey", TotalImages: 216, Names: []string{"turkey", "turquie", "turkiye"}},
		Country{Name: "Vietnam", Tier: Medium, Folder: "vietnam", TotalImages: 189, Names: []string{"vietnam", "viet nam"}},
	)
}
